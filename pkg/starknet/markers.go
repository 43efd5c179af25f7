package starknet

// MarkerKind names one of the "next expected block number" counters the
// storage engine tracks. Markers satisfy:
//
//	Header >= Body >= State >= Class >= CompiledClass
//	BaseLayer is tracked independently (L1 finality watermark).
type MarkerKind uint8

const (
	MarkerHeader MarkerKind = iota
	MarkerBody
	MarkerState
	MarkerClass
	MarkerCompiledClass
	MarkerBaseLayer
)

func (m MarkerKind) String() string {
	switch m {
	case MarkerHeader:
		return "header"
	case MarkerBody:
		return "body"
	case MarkerState:
		return "state"
	case MarkerClass:
		return "class"
	case MarkerCompiledClass:
		return "compiled_class"
	case MarkerBaseLayer:
		return "base_layer"
	default:
		return "unknown"
	}
}
