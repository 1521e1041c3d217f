package protocol

// Nation is the flag byte clients pick in the frontend.
type Nation uint8

const (
	NationNone Nation = iota
	NationUK
	NationAR
	NationAU
	NationAT
	NationBE
	NationBR
	NationCA
	NationHR
	NationBA
	NationCY
	NationCZ
	NationDK
	NationFI
	NationFR
	NationGE
	NationDE
	NationGR
	NationHK
	NationHU
	NationIS
	NationIN
	NationID
	NationIR
	NationIQ
	NationIE
	NationIL
	NationIT
	NationJP
	NationLI
	NationLU
	NationMY
	NationMT
	NationMX
	NationMA
	NationNL
	NationNZ
	NationNO
	NationPL
	NationPT
	NationPR
	NationRO
	NationRU
	NationSG
	NationZA
	NationES
	NationSE
	NationCH
	NationTR
	NationUS
	NationSkull
	NationTeam17
)

// NationFromByte maps a wire byte to a Nation. Values outside the known
// range fold to NationNone.
func NationFromByte(b byte) Nation {
	if b > uint8(NationTeam17) {
		return NationNone
	}
	return Nation(b)
}
