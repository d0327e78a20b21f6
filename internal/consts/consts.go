package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // Kelvin temperature (K)

	RoomTempKelvin = 300.15 // Default analysis temperature (27C)

	// Newton-Raphson defaults.
	DefaultRelTol  = 1e-3
	DefaultAbsTol  = 1e-12 // A
	DefaultVnTol   = 1e-6  // V
	DefaultMaxIter = 150

	// Local-truncation-error step control defaults.
	DefaultLTEAbsTol  = 1e-6
	DefaultLTERelTol  = 1e-3
	DefaultLTEFactor  = 1.0
	MaxLTEFactor      = 16.0
	HistoryRingLength = 8
	MaxIntegratorOrder = 6
)
