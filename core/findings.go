package core

// FindingKind groups findings into the buckets stages report under.
type FindingKind string

const (
	KindDimension  FindingKind = "dimension"
	KindFileSize   FindingKind = "fileSize"
	KindFormat     FindingKind = "format"
	KindFace       FindingKind = "face"
	KindBackground FindingKind = "background"
	KindLighting   FindingKind = "lighting"
	KindQuality    FindingKind = "quality"
	KindExpression FindingKind = "expression"
	KindPosition   FindingKind = "position"
)

// Severity splits findings into blocking errors and advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FindingCode names one compliance condition.  Every code maps to exactly
// one canonical message and remediation suggestion.
type FindingCode string

const (
	CodeInvalidDimensions    FindingCode = "invalid_dimensions"
	CodeFileTooSmall         FindingCode = "file_too_small"
	CodeFileTooLarge         FindingCode = "file_too_large"
	CodeWrongFormat          FindingCode = "wrong_format"
	CodeNoFaceDetected       FindingCode = "no_face_detected"
	CodeMultipleFaces        FindingCode = "multiple_faces"
	CodeFaceTooSmall         FindingCode = "face_too_small"
	CodeFaceTooLarge         FindingCode = "face_too_large"
	CodeOffCenter            FindingCode = "off_center"
	CodeHeadTilted           FindingCode = "head_tilted"
	CodeEyesClosed           FindingCode = "eyes_closed"
	CodeExpressionNotNeutral FindingCode = "expression_not_neutral"
	CodeImageTooDark         FindingCode = "image_too_dark"
	CodeImageTooBright       FindingCode = "image_too_bright"
	CodeShadowsDetected      FindingCode = "shadows_detected"
	CodeBackgroundNotPlain   FindingCode = "background_not_plain"
	CodeComplexBackground    FindingCode = "complex_background"
)

// Finding is a tagged compliance outcome produced by an analysis stage.
type Finding struct {
	Code       FindingCode `json:"code"`
	Kind       FindingKind `json:"kind"`
	Severity   Severity    `json:"severity"`
	Critical   bool        `json:"critical"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion"`
}

// IsError reports whether the finding blocks validity.
func (f Finding) IsError() bool { return f.Severity == SeverityError }

// catalogEntry fixes the canonical shape of one finding code.
type catalogEntry struct {
	kind       FindingKind
	severity   Severity
	critical   bool
	message    string
	suggestion string
}

var catalog = map[FindingCode]catalogEntry{
	CodeInvalidDimensions: {
		kind: KindDimension, severity: SeverityError, critical: true,
		message:    "photo must be exactly 600x600 pixels",
		suggestion: "crop or retake the photo at the required 600x600 size",
	},
	CodeFileTooSmall: {
		kind: KindFileSize, severity: SeverityError, critical: true,
		message:    "file is smaller than 10KB",
		suggestion: "save the photo at a higher quality setting",
	},
	CodeFileTooLarge: {
		kind: KindFileSize, severity: SeverityError, critical: true,
		message:    "file is larger than 240KB",
		suggestion: "re-export the photo with stronger JPEG compression",
	},
	CodeWrongFormat: {
		kind: KindFormat, severity: SeverityError, critical: true,
		message:    "photo must be a JPEG file",
		suggestion: "convert the image to JPEG before submitting",
	},
	CodeNoFaceDetected: {
		kind: KindFace, severity: SeverityError, critical: true,
		message:    "no face was detected in the photo",
		suggestion: "face the camera directly in even lighting and retake",
	},
	CodeMultipleFaces: {
		kind: KindFace, severity: SeverityError, critical: true,
		message:    "more than one face was detected",
		suggestion: "retake the photo with only the applicant in frame",
	},
	CodeFaceTooSmall: {
		kind: KindFace, severity: SeverityError,
		message:    "the face occupies too little of the frame",
		suggestion: "move closer to the camera so the head fills 50-69% of the photo",
	},
	CodeFaceTooLarge: {
		kind: KindFace, severity: SeverityError,
		message:    "the face occupies too much of the frame",
		suggestion: "move further from the camera so the full head fits with margin",
	},
	CodeOffCenter: {
		kind: KindPosition, severity: SeverityWarning,
		message:    "the face is not centered in the frame",
		suggestion: "center your face horizontally and vertically",
	},
	CodeHeadTilted: {
		kind: KindPosition, severity: SeverityWarning,
		message:    "the head appears tilted",
		suggestion: "hold your head straight and level with the camera",
	},
	CodeEyesClosed: {
		kind: KindExpression, severity: SeverityError,
		message:    "eyes appear to be closed",
		suggestion: "keep both eyes open and visible",
	},
	CodeExpressionNotNeutral: {
		kind: KindExpression, severity: SeverityWarning,
		message:    "expression does not appear neutral",
		suggestion: "use a neutral expression with a closed mouth",
	},
	CodeImageTooDark: {
		kind: KindLighting, severity: SeverityError,
		message:    "the photo is underexposed",
		suggestion: "retake the photo facing a bright, even light source",
	},
	CodeImageTooBright: {
		kind: KindLighting, severity: SeverityError,
		message:    "the photo is overexposed",
		suggestion: "reduce direct lighting or move away from the light source",
	},
	CodeShadowsDetected: {
		kind: KindLighting, severity: SeverityWarning,
		message:    "uneven lighting or shadows detected",
		suggestion: "use diffuse frontal lighting to remove shadows",
	},
	CodeBackgroundNotPlain: {
		kind: KindBackground, severity: SeverityWarning,
		message:    "the background is too dark or not plain white",
		suggestion: "stand in front of a plain white or off-white wall",
	},
	CodeComplexBackground: {
		kind: KindBackground, severity: SeverityWarning,
		message:    "the background is too busy",
		suggestion: "remove objects and patterns behind you",
	},
}

// NewFinding returns the canonical finding for code.  Unknown codes return a
// generic quality warning so a stage bug cannot crash a validation.
func NewFinding(code FindingCode) Finding {
	e, ok := catalog[code]
	if !ok {
		return Finding{
			Code: code, Kind: KindQuality, Severity: SeverityWarning,
			Message: string(code),
		}
	}
	return Finding{
		Code:       code,
		Kind:       e.kind,
		Severity:   e.severity,
		Critical:   e.critical,
		Message:    e.message,
		Suggestion: e.suggestion,
	}
}

// AsError returns the canonical finding with its severity raised to error.
func AsError(code FindingCode) Finding {
	f := NewFinding(code)
	f.Severity = SeverityError
	return f
}
