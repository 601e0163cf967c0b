package scangate

// ValidationError rejects a payload before it enters the pipeline.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "scangate: invalid payload: " + e.Reason
}
