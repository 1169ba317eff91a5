package calibra

import "math"

var (
	landauP1 = [5]float64{0.4259894875, -0.1249762550, 0.03984243700, -0.006298287635, 0.001511162253}
	landauQ1 = [5]float64{1.0, -0.3388260629, 0.09594393323, -0.01608042283, 0.003778942063}
	landauP2 = [5]float64{0.1788541609, 0.1173957403, 0.01488850518, -0.001394989411, 0.0001283617211}
	landauQ2 = [5]float64{1.0, 0.7428795082, 0.3153932961, 0.06694219548, 0.008790609714}
	landauP3 = [5]float64{0.1788544503, 0.09359161662, 0.006325387654, 0.00006611667319, -0.000002031049101}
	landauQ3 = [5]float64{1.0, 0.6097809921, 0.2560616665, 0.04746722384, 0.006957301675}
	landauP4 = [5]float64{0.9874054407, 118.6723273, 849.2794360, -743.7792444, 427.0262186}
	landauQ4 = [5]float64{1.0, 106.8615961, 337.6496214, 2016.712389, 1597.063511}
	landauP5 = [5]float64{1.003675074, 167.5702434, 4789.711289, 21217.86767, -22324.94910}
	landauQ5 = [5]float64{1.0, 156.9424537, 3745.310488, 9834.698876, 66924.28357}
	landauP6 = [5]float64{1.000827619, 664.9143136, 62972.92665, 475554.6998, -5743609.109}
	landauQ6 = [5]float64{1.0, 651.4101098, 56974.73333, 165917.4725, -2815759.939}
	landauA1 = [3]float64{0.04166666667, -0.01996527778, 0.02709538966}
	landauA2 = [2]float64{-1.845568670, -4.284640743}
)

func poly4(c [5]float64, x float64) float64 {
	return c[0] + (c[1]+(c[2]+(c[3]+c[4]*x)*x)*x)*x
}

// denlan is the Landau density of the reduced variable v.
func denlan(v float64) float64 {
	switch {
	case v < -5.5:
		u := math.Exp(v + 1)
		if u < 1e-10 {
			return 0
		}
		ue := math.Exp(-1 / u)
		us := math.Sqrt(u)
		return 0.3989422803 * (ue / us) * (1 + (landauA1[0]+(landauA1[1]+landauA1[2]*u)*u)*u)
	case v < -1:
		u := math.Exp(-v - 1)
		return math.Exp(-u) * math.Sqrt(u) * poly4(landauP1, v) / poly4(landauQ1, v)
	case v < 1:
		return poly4(landauP2, v) / poly4(landauQ2, v)
	case v < 5:
		return poly4(landauP3, v) / poly4(landauQ3, v)
	case v < 12:
		u := 1 / v
		return u * u * poly4(landauP4, u) / poly4(landauQ4, u)
	case v < 50:
		u := 1 / v
		return u * u * poly4(landauP5, u) / poly4(landauQ5, u)
	case v < 300:
		u := 1 / v
		return u * u * poly4(landauP6, u) / poly4(landauQ6, u)
	default:
		u := 1 / (v - v*math.Log(v)/(v+1))
		return u * u * (1 + (landauA2[0]+landauA2[1]*u)*u)
	}
}

// Landau returns the Landau density at x with location mpv and scale
// sigma, not divided by sigma. The maximum lies near mpv - 0.22278*sigma.
func Landau(x, mpv, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	return denlan((x - mpv) / sigma)
}

// Gaus is the unnormalised Gaussian exp(-(x-mean)^2 / 2 sigma^2).
func Gaus(x, mean, sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	d := (x - mean) / sigma
	return math.Exp(-0.5 * d * d)
}

const (
	invsq2pi = 0.3989422804014
	mpShift  = -0.22278298
	// Convolution steps and extent in gaussian sigmas.
	langauSteps = 100
	langauSigma = 5.0

	lanGauProMaxCalls = 10000
)

// LanGauFun is a Landau density convolved with a Gaussian. The parameters
// are the Landau width, the most probable value, the area and the width
// of the Gaussian.
func LanGauFun(x float64, par []float64) float64 {
	mpc := par[1] - mpShift*par[0]
	if par[0] <= 0 || par[3] <= 0 {
		return 0
	}
	xlow := x - langauSigma*par[3]
	xupp := x + langauSigma*par[3]
	step := (xupp - xlow) / langauSteps

	sum := 0.0
	for i := 1.0; i <= langauSteps/2; i++ {
		xx := xlow + (i-0.5)*step
		fland := Landau(xx, mpc, par[0]) / par[0]
		sum += fland * Gaus(x, xx, par[3])

		xx = xupp - (i-0.5)*step
		fland = Landau(xx, mpc, par[0]) / par[0]
		sum += fland * Gaus(x, xx, par[3])
	}
	return par[2] * step * sum * invsq2pi / par[3]
}

// LanGauPro walks to the maximum of LanGauFun and to the two half maximum
// points. The step is reversed and divided by ten whenever the walk passes
// the target; each search stops after lanGauProMaxCalls evaluations with a
// code of -1 (maximum), -2 (right) or -3 (left).
func LanGauPro(par []float64) (maxx, fwhm float64, code int) {
	p := par[1] - 0.1*par[0]
	step := 0.05 * par[0]
	lold, l := -2.0, -1.0
	x := p
	i := 0
	for l != lold && i < lanGauProMaxCalls {
		i++
		lold = l
		x = p + step
		l = LanGauFun(x, par)
		if l < lold {
			step = -step / 10
		}
		p += step
	}
	if i == lanGauProMaxCalls {
		return 0, 0, -1
	}
	maxx = x
	half := l / 2

	walk := func(start, step float64) (float64, bool) {
		p := start
		lold, l := -2.0, -1e300
		x := p
		i := 0
		for l != lold && i < lanGauProMaxCalls {
			i++
			lold = l
			x = p + step
			l = math.Abs(LanGauFun(x, par) - half)
			if l > lold {
				step = -step / 10
			}
			p += step
		}
		return x, i < lanGauProMaxCalls
	}

	right, ok := walk(maxx+par[0], par[0])
	if !ok {
		return maxx, 0, -2
	}
	left, ok := walk(maxx-0.5*par[0], -par[0])
	if !ok {
		return maxx, 0, -3
	}
	return maxx, right - left, 0
}
