package trd

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

type RunInfoHDF5 struct {
	run_number int32
	pass_id    [STRLEN]byte
}

type EventDataHDF5 struct {
	evt_number int32
	n_hits     int32
	n_digits   int32
	n_clusters int32
}

type DigitHDF5 struct {
	evt_number int32
	detector   int16
	row        int16
	col        int16
	time       int16
	amplitude  int16
	track0     int32
	track1     int32
	track2     int32
}

type ClusterHDF5 struct {
	evt_number int32
	detector   int16
	row        int16
	col        int16
	time       int16
	y          float32
	z          float32
	t          float32
	q          float32
	sigma_y2   float32
	sigma_z2   float32
	ctype      int8
	unfolded   int8
	track0     int32
	track1     int32
	track2     int32
}

type CalibDetHDF5 struct {
	quantity [STRLEN]byte
	detector int16
	value    float32
	fitted   int8
}

type CalibPadHDF5 struct {
	quantity [STRLEN]byte
	detector int16
	row      int16
	col      int16
	value    float32
}

const STRLEN = 40

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

// table is an extendible one-dimensional dataset of compound rows.
type table struct {
	name string
	dset *hdf5.Dataset
	rows int
}

func createTable(group *hdf5.Group, name string, datatype interface{}, chunk uint) (*table, error) {
	unlimited := -1 // H5S_UNLIMITED
	fileSpace, err := hdf5.CreateSimpleDataspace([]uint{0}, []uint{uint(unlimited)})
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer fileSpace.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()
	plist.SetChunk([]uint{chunk})
	if level := configuration.CompressionLevel; level > 0 {
		plist.SetDeflate(level)
	}

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return &table{name: name, dset: dset}, nil
}

// Rows is the number of rows written so far.
func (t *table) Rows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

func (t *table) Close() error {
	if t == nil || t.dset == nil {
		return nil
	}
	if err := t.dset.Close(); err != nil {
		return fmt.Errorf("error closing table %s: %w", t.name, err)
	}
	return nil
}

// appendRows extends the table by len(data) rows. The rows counter only
// moves when the write succeeds.
func appendRows[T any](t *table, data []T) error {
	n := uint(len(data))
	if n == 0 {
		return nil
	}
	memSpace, err := hdf5.CreateSimpleDataspace([]uint{n}, nil)
	if err != nil {
		return fmt.Errorf("%s: memory dataspace: %w", t.name, err)
	}
	defer memSpace.Close()

	start := uint(t.rows)
	if err := t.dset.Resize([]uint{start + n}); err != nil {
		return fmt.Errorf("%s: resizing to %d rows: %w", t.name, start+n, err)
	}
	fileSpace := t.dset.Space()
	defer fileSpace.Close()
	fileSpace.SelectHyperslab([]uint{start}, nil, []uint{n}, nil)
	if err := t.dset.WriteSubset(&data, memSpace, fileSpace); err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	t.rows += len(data)
	return nil
}
