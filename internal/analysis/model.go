package analysis

// Severity levels reported for safety issues and mitigation strategies.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Result is the structured outcome of inspecting one video. It is immutable
// once produced: the pipeline writes it to the cache and attaches it to the
// job, and no component mutates it afterwards.
type Result struct {
	IncorrectParking     bool          `json:"incorrectParking"`
	WasteMaterial        bool          `json:"wasteMaterial"`
	Explanation          string        `json:"explanation"`
	Frames               []Frame       `json:"frames"`
	FrameDetails         []FrameDetail `json:"frameDetails,omitempty"`
	MitigationStrategies []Strategy    `json:"mitigationStrategies,omitempty"`
}

// Frame is one representative frame selected from the video.
// When FrameDetails is present on the Result, index i of Frames corresponds
// to index i of FrameDetails.
type Frame struct {
	Time          string        `json:"time"`
	ImageURL      string        `json:"imageUrl"`
	BoundingBoxes []BoundingBox `json:"boundingBoxes"`
}

// BoundingBox marks a detected object inside a frame. Coordinates are
// normalized to the frame dimensions.
type BoundingBox struct {
	Label             string  `json:"label"`
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	W                 float64 `json:"w"`
	H                 float64 `json:"h"`
	Severity          string  `json:"severity,omitempty"`
	Reason            string  `json:"reason,omitempty"`
	ImmediateAction   bool    `json:"immediate_action,omitempty"`
	MitigationSummary string  `json:"mitigation_summary,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
	Source            string  `json:"source,omitempty"`
}

// FrameDetail carries the per-frame narrative observations.
type FrameDetail struct {
	FrameIndex           int           `json:"frameIndex"`
	Timestamp            string        `json:"timestamp"`
	DetailedObservations string        `json:"detailedObservations"`
	SafetyIssues         []SafetyIssue `json:"safetyIssues"`
	PathwayClearance     string        `json:"pathwayClearance,omitempty"`
	EmergencyAccess      string        `json:"emergencyAccess,omitempty"`
}

// SafetyIssue is a single hazard observed in a frame.
type SafetyIssue struct {
	Type        string       `json:"type"`
	Severity    string       `json:"severity"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Impact      string       `json:"impact"`
	GridCells   string       `json:"gridCells,omitempty"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// Strategy is a recommended mitigation for a detected hazard class.
type Strategy struct {
	Type             string `json:"type"`
	Severity         string `json:"severity"`
	Urgency          string `json:"urgency"`
	Description      string `json:"description"`
	Timeline         string `json:"timeline"`
	ResponsibleParty string `json:"responsible_party"`
}
