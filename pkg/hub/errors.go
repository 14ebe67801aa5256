package hub

import "github.com/cuemby/caephub/pkg/codes"

// result is what every tool handler builds before dispatch wraps it in
// the idempotency gate and marshals it to the stored []byte form.
type result = map[string]interface{}

// ok builds the {success:true, ...} envelope, merging extra's keys at
// the top level.
func ok(extra result) result {
	out := result{"success": true}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// fail builds the {success:false, error_code, error} envelope for a
// coded failure.
func fail(err *codes.Error) result {
	return result{
		"success":    false,
		"error_code": string(err.Code),
		"error":      err.Message,
	}
}
