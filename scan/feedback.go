package scan

// Corrective feedback is a data-driven mapping from metric kind to tip
// text, not a switch ladder, so tip sets can be swapped or localized
// without touching selection logic.

type tipVariant int

const (
	tipDefault tipVariant = iota
	tipTooClose
	tipTooFar
)

var feedbackTips = map[MetricKind]map[tipVariant]string{
	MetricDistance: {
		tipDefault:  "adjust distance to the reference card",
		tipTooClose: "move back from the reference card",
		tipTooFar:   "move closer to the reference card",
	},
	MetricAlignment: {
		tipDefault: "hold the device parallel to the card",
	},
	MetricCentering: {
		tipDefault: "center the card in the frame",
	},
	MetricStability: {
		tipDefault: "hold the device steady",
	},
	MetricSizeMatch: {
		tipDefault: "make sure the full card is visible",
	},
}

// Tip returns the corrective feedback text for the given metric. The
// distance tip distinguishes too-close from too-far using the observed
// depth against the reference object's ideal distance.
func Tip(kind MetricKind, obs *Observation, ref ReferenceObject) string {
	variants, ok := feedbackTips[kind]
	if !ok {
		return ""
	}
	if kind == MetricDistance && obs != nil && obs.CenterDepth > 0 {
		if obs.CenterDepth < ref.IdealDistanceM {
			return variants[tipTooClose]
		}
		return variants[tipTooFar]
	}
	return variants[tipDefault]
}
