package workflow

// Trigger represents an event that ends or advances a trace run
type Trigger string

const (
	// TriggerTerminate fires when the trace reached its [eof] line
	TriggerTerminate Trigger = "TERMINATE"
	// TriggerExhaust fires when the input ended before [eof]
	TriggerExhaust Trigger = "EXHAUST"
	// TriggerFail fires when reading the input failed or was cancelled
	TriggerFail Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
