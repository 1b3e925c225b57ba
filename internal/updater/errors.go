package updater

import "fmt"

// ConnectivityError is returned by Run when the pre-flight request to the
// release host fails. No application is processed.
type ConnectivityError struct {
	URL string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// StepError ties a failure to the workflow step that produced it.
type StepError struct {
	App  string
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.App, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
