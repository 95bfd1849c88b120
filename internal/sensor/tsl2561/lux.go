package tsl2561

// Fixed-point constants of the integer lux approximation published in the TSL2561
// datasheet for the T, FN and CL packages.
const (
	luxScale   = 14
	ratioScale = 9
	chScale    = 10

	chScaleTint0 = 0x7517 // 322/11 * 2^chScale
	chScaleTint1 = 0x0FE7 // 322/81 * 2^chScale
)

// ratio thresholds (k) with their broadband (b) and infrared (m) coefficients.
var luxSegments = []struct {
	k, b, m int64
}{
	{k: 0x0040, b: 0x01f2, m: 0x01be},
	{k: 0x0080, b: 0x0214, m: 0x02d1},
	{k: 0x00c0, b: 0x023f, m: 0x037b},
	{k: 0x0100, b: 0x0270, m: 0x03fe},
	{k: 0x0138, b: 0x016f, m: 0x01fc},
	{k: 0x019a, b: 0x00d2, m: 0x00fb},
	{k: 0x029a, b: 0x0018, m: 0x0012},
}

// CalculateLux converts raw broadband (channel 0) and infrared (channel 1) counts
// into lux. Saturated channels yield MaxLux.
func CalculateLux(broadband, ir uint16, opts Options) int {
	clip := opts.Integration.clipThreshold()
	if broadband > clip || ir > clip {
		return MaxLux
	}

	var scale int64
	switch opts.Integration {
	case Integration13ms:
		scale = chScaleTint0
	case Integration101ms:
		scale = chScaleTint1
	default:
		scale = 1 << chScale
	}
	if !opts.HighGain {
		scale <<= 4
	}

	channel0 := (int64(broadband) * scale) >> chScale
	channel1 := (int64(ir) * scale) >> chScale

	var ratio1 int64
	if channel0 != 0 {
		ratio1 = (channel1 << (ratioScale + 1)) / channel0
	}
	ratio := (ratio1 + 1) >> 1

	// Above the last threshold both coefficients are zero.
	var b, m int64
	for _, seg := range luxSegments {
		if ratio <= seg.k {
			b, m = seg.b, seg.m
			break
		}
	}

	temp := channel0*b - channel1*m
	if temp < 0 {
		temp = 0
	}
	temp += 1 << (luxScale - 1)

	return int(temp >> luxScale)
}
