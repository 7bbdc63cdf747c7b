package tools

import "fmt"

// Result is the unified return type from tool execution. A failed
// execution is still a Result; IsError marks it so the caller can feed
// the message back to the model as an observation.
type Result struct {
	ForLLM  string `json:"for_llm"`            // content sent to the LLM
	ForUser string `json:"for_user,omitempty"` // content shown to the user
	IsError bool   `json:"is_error"`           // marks a failed execution
	Err     error  `json:"-"`                  // internal error (not serialized)
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func Errorf(format string, args ...interface{}) *Result {
	return ErrorResult(fmt.Sprintf(format, args...))
}

func UserResult(content string) *Result {
	return &Result{ForLLM: content, ForUser: content}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}
