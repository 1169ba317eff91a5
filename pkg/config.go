package trd

// Configuration holds every run-level setting shared by the commands and
// the library code. Defaults are filled in by the commands before the
// configuration file is read on top of them.
type Configuration struct {
	MaxEvents        int    `json:"max_events" yaml:"max_events"`
	Skip             int    `json:"skip" yaml:"skip"`
	Verbosity        int    `json:"verbosity" yaml:"verbosity"`
	FileIn           string `json:"file_in" yaml:"file_in"`
	FileOut          string `json:"file_out" yaml:"file_out"`
	HitCollection    string `json:"hit_collection" yaml:"hit_collection"`
	RunNumber        int    `json:"run_number" yaml:"run_number"`
	Seed             uint64 `json:"seed" yaml:"seed"`
	NoDB             bool   `json:"no_db" yaml:"no_db"`
	DBDriver         string `json:"db_driver" yaml:"db_driver"`
	DBPath           string `json:"db_path" yaml:"db_path"`
	Host             string `json:"host" yaml:"host"`
	User             string `json:"user" yaml:"user"`
	Passwd           string `json:"pass" yaml:"pass"`
	DBName           string `json:"dbname" yaml:"dbname"`
	NumWorkers       int    `json:"num_workers" yaml:"num_workers"`
	WriteData        bool   `json:"write_data" yaml:"write_data"`
	WriteDigits      bool   `json:"write_digits" yaml:"write_digits"`
	WriteClusters    bool   `json:"write_clusters" yaml:"write_clusters"`
	CompressionLevel int    `json:"compression_level" yaml:"compression_level"`

	Gun            GunParameters      `json:"gun" yaml:"gun"`
	Geometry       GeometryParameters `json:"geometry" yaml:"geometry"`
	Simulation     SimParameters      `json:"simulation" yaml:"simulation"`
	Reconstruction RecoParameters     `json:"reconstruction" yaml:"reconstruction"`
	Calibration    CalibParameters    `json:"calibration" yaml:"calibration"`
}

// GeometryParameters selects the active chambers and the readout length.
type GeometryParameters struct {
	// Holes lists absent chambers as (sector, chamber) pairs.
	Holes     [][2]int `json:"holes" yaml:"holes"`
	NTimeBins int      `json:"time_bins" yaml:"time_bins"`
}

// SimParameters are the tunable constants of the detector response.
type SimParameters struct {
	DiffusionOn       bool    `json:"diffusion_on" yaml:"diffusion_on"`
	ExBOn             bool    `json:"exb_on" yaml:"exb_on"`
	TimeStructOn      bool    `json:"time_struct_on" yaml:"time_struct_on"`
	PRFOn             bool    `json:"prf_on" yaml:"prf_on"`
	TRFOn             bool    `json:"trf_on" yaml:"trf_on"`
	GasGainFluct      bool    `json:"gas_gain_fluctuation" yaml:"gas_gain_fluctuation"`
	GasGain           float64 `json:"gas_gain" yaml:"gas_gain"`
	Field             float64 `json:"field" yaml:"field"`
	DriftVelocity     float64 `json:"drift_velocity" yaml:"drift_velocity"`
	ConversionFactor  float64 `json:"conversion_factor" yaml:"conversion_factor"`
	NoiseADC          float64 `json:"noise_adc" yaml:"noise_adc"`
	ADCBaseline       int     `json:"adc_baseline" yaml:"adc_baseline"`
	ADCThreshold      int     `json:"adc_threshold" yaml:"adc_threshold"`
	ADCOutRange       int     `json:"adc_out_range" yaml:"adc_out_range"`
	SamplingFrequency float64 `json:"sampling_frequency" yaml:"sampling_frequency"`
	PretriggerBins    int     `json:"pretrigger_bins" yaml:"pretrigger_bins"`
	TRFTau            float64 `json:"trf_tau" yaml:"trf_tau"`
	Wion              float64 `json:"wion" yaml:"wion"`
	SDigitsScale      float64 `json:"sdigits_scale" yaml:"sdigits_scale"`
}

// RecoParameters configure the clusterizers.
type RecoParameters struct {
	ClusMaxThresh   float64 `json:"clus_max_thresh" yaml:"clus_max_thresh"`
	ClusSigThresh   float64 `json:"clus_sig_thresh" yaml:"clus_sig_thresh"`
	LUTOn           bool    `json:"lut_on" yaml:"lut_on"`
	ExBCorrection   bool    `json:"exb_correction" yaml:"exb_correction"`
	FastClusterizer bool    `json:"fast_clusterizer" yaml:"fast_clusterizer"`
	FastSigmaRphi   float64 `json:"fast_sigma_rphi" yaml:"fast_sigma_rphi"`
}

// CalibParameters configure the calibration histograms and the fit engine.
type CalibParameters struct {
	ModeCH          string  `json:"mode_ch" yaml:"mode_ch"`
	ModePH          string  `json:"mode_ph" yaml:"mode_ph"`
	ModePRF         string  `json:"mode_prf" yaml:"mode_prf"`
	MinEntries      int     `json:"min_entries" yaml:"min_entries"`
	FitCHMethod     string  `json:"fit_ch_method" yaml:"fit_ch_method"`
	FitPHMethod     string  `json:"fit_ph_method" yaml:"fit_ph_method"`
	FitPRFMethod    string  `json:"fit_prf_method" yaml:"fit_prf_method"`
	BeginFitCharge  float64 `json:"begin_fit_charge" yaml:"begin_fit_charge"`
	T0Shift         float64 `json:"t0_shift" yaml:"t0_shift"`
	TakeTheMaxPH    bool    `json:"take_the_max_ph" yaml:"take_the_max_ph"`
	RangeFitPRF     float64 `json:"range_fit_prf" yaml:"range_fit_prf"`
	Normalize       bool    `json:"normalize" yaml:"normalize"`
	LinearFitVdrift bool    `json:"linear_fit_vdrift" yaml:"linear_fit_vdrift"`
	NumberBinCharge int     `json:"number_bin_charge" yaml:"number_bin_charge"`
	ChargeMax       float64 `json:"charge_max" yaml:"charge_max"`
	NumberBinPRF    int     `json:"number_bin_prf" yaml:"number_bin_prf"`
	// Tracklet charges are divided by RelativeScale before filling; fitted
	// charges are divided by ScaleFitFactor to give gain factors when they
	// are not normalised.
	RelativeScale    float64 `json:"relative_scale" yaml:"relative_scale"`
	ScaleFitFactor   float64 `json:"scale_fit_factor" yaml:"scale_fit_factor"`
	MinEntriesLinear int     `json:"min_entries_linear" yaml:"min_entries_linear"`
	DetMin           int     `json:"det_min" yaml:"det_min"`
	DetMax           int     `json:"det_max" yaml:"det_max"`
	PlotDir          string  `json:"plot_dir" yaml:"plot_dir"`
	MinRun           int     `json:"min_run" yaml:"min_run"`
	MaxRun           int     `json:"max_run" yaml:"max_run"`
}

// GunParameters drive the built-in particle gun used when no hit file is
// given.
type GunParameters struct {
	Tracks    int     `json:"tracks" yaml:"tracks"`
	PtMin     float64 `json:"pt_min" yaml:"pt_min"`
	PtMax     float64 `json:"pt_max" yaml:"pt_max"`
	EtaMax    float64 `json:"eta_max" yaml:"eta_max"`
	DeltaRays bool    `json:"delta_rays" yaml:"delta_rays"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

// DefaultConfiguration returns the nominal settings of the detector model.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxEvents:        1000000000,
		HitCollection:    "TRDHits",
		RunNumber:        0,
		Seed:             1,
		DBDriver:         "mysql",
		Host:             "localhost",
		User:             "trdreader",
		Passwd:           "readonly",
		DBName:           "TRDCALIB",
		NumWorkers:       1,
		WriteData:        true,
		WriteDigits:      true,
		WriteClusters:    true,
		CompressionLevel: 4,
		Gun: GunParameters{
			Tracks:    20,
			PtMin:     0.5,
			PtMax:     5.0,
			EtaMax:    0.8,
			DeltaRays: true,
		},
		Geometry: GeometryParameters{
			Holes:     [][2]int{{13, 2}, {14, 2}, {15, 2}},
			NTimeBins: 30,
		},
		Simulation:     DefaultSimParameters(),
		Reconstruction: DefaultRecoParameters(),
		Calibration:    DefaultCalibParameters(),
	}
}

func DefaultSimParameters() SimParameters {
	return SimParameters{
		DiffusionOn:       true,
		ExBOn:             true,
		TimeStructOn:      true,
		PRFOn:             true,
		TRFOn:             true,
		GasGainFluct:      true,
		GasGain:           4000,
		Field:             0.5,
		DriftVelocity:     1.5,
		ConversionFactor:  1.25e-4,
		NoiseADC:          1.2,
		ADCBaseline:       0,
		ADCThreshold:      3,
		ADCOutRange:       1023,
		SamplingFrequency: 10.0,
		PretriggerBins:    5,
		TRFTau:            0.06,
		Wion:              23.53,
		SDigitsScale:      1.0,
	}
}

func DefaultRecoParameters() RecoParameters {
	return RecoParameters{
		ClusMaxThresh: 4.5,
		ClusSigThresh: 3.5,
		LUTOn:         false,
		ExBCorrection: true,
		FastSigmaRphi: 0.02,
	}
}

func DefaultCalibParameters() CalibParameters {
	return CalibParameters{
		ModeCH:           "CH2dNz0Nrphi0",
		ModePH:           "PH2dNz0Nrphi0",
		ModePRF:          "PRF2dNz0Nrphi0",
		MinEntries:       800,
		FitCHMethod:      "meanw",
		FitPHMethod:      "slope",
		FitPRFMethod:     "gaus",
		BeginFitCharge:   3.5,
		T0Shift:          0.0,
		RangeFitPRF:      1.0,
		Normalize:        true,
		NumberBinCharge:  100,
		ChargeMax:        300,
		NumberBinPRF:     30,
		RelativeScale:    2,
		ScaleFitFactor:   1,
		MinEntriesLinear: 50,
		DetMin:           0,
		DetMax:           539,
		MinRun:           0,
		MaxRun:           1000000000,
	}
}
