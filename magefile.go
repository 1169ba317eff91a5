//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildTrdsim, BuildTrdcalib, BuildMeasureAlgos)
	fmt.Println("Compilation finished")
	return nil
}

func BuildTrdsim() error {
	return buildCommand("trdsim")
}

func BuildTrdcalib() error {
	return buildCommand("trdcalib")
}

func BuildMeasureAlgos() error {
	return buildCommand("measureAlgos")
}

// Test runs the tests of every package.
func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./...")
}

// The HDF5 bindings need cgo and the flags of the local installation.
func buildCommand(name string) error {
	fmt.Printf("Building %s executable...\n", name)
	return goCommand("build", "-o", "./bin/"+name, "./"+name)
}

func goCommand(args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", os.Getenv("CGO_LDFLAGS")),
		fmt.Sprintf("CGO_CFLAGS=%s", os.Getenv("CGO_CFLAGS")))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
