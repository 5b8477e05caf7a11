package wire

// MessageCode is the application-defined tag classifying a package's meaning.
// Unknown codes are legal on the wire; the values below are the codes this
// project's peers dispatch on.
type MessageCode int32

const (
	CodeParameterUpdate  MessageCode = 1
	CodeParameterRequest MessageCode = 2
	CodeEvaluateParams   MessageCode = 3
	CodeExit             MessageCode = 4
)

var codeNames = map[MessageCode]string{
	CodeParameterUpdate:  "parameter.update",
	CodeParameterRequest: "parameter.request",
	CodeEvaluateParams:   "evaluate.params",
	CodeExit:             "exit",
}

// Name returns a stable label for logs and metrics. Unregistered codes
// report as "unknown".
func (c MessageCode) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}
