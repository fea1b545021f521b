package requests

import "fmt"

// PoolingCase classifies a renewal request by how the PI's pooling
// arrangement changes between the pre- and post-projects. It is
// computed once per runner invocation and never stored.
type PoolingCase int

const (
	// UnpooledToUnpooled keeps a sole PI on the same project.
	UnpooledToUnpooled PoolingCase = iota
	// UnpooledToPooled moves a sole PI onto a pooled project.
	UnpooledToPooled
	// PooledToPooledSame keeps a pooled PI on the same project.
	PooledToPooledSame
	// PooledToPooledDifferent moves a pooled PI onto a different
	// pooled project.
	PooledToPooledDifferent
	// PooledToUnpooledOld moves a pooled PI back onto another existing
	// project of their own.
	PooledToUnpooledOld
	// PooledToUnpooledNew moves a pooled PI onto a project created for
	// this request.
	PooledToUnpooledNew
)

func (c PoolingCase) String() string {
	switch c {
	case UnpooledToUnpooled:
		return "unpooled_to_unpooled"
	case UnpooledToPooled:
		return "unpooled_to_pooled"
	case PooledToPooledSame:
		return "pooled_to_pooled_same"
	case PooledToPooledDifferent:
		return "pooled_to_pooled_different"
	case PooledToUnpooledOld:
		return "pooled_to_unpooled_old"
	case PooledToUnpooledNew:
		return "pooled_to_unpooled_new"
	}
	return "unknown"
}

// ClassifyPooling maps the (pre pooled, post pooled, same project)
// combination to one of the six cases. newProject is true when the
// post-project was created for this request; it decides the case on its
// own for differing projects, before pooled-ness is consulted, because
// a project created for the request has no members yet. Combinations
// outside the six valid cases return ErrUnexpectedPoolingCase; they are
// unreachable given validated input.
func ClassifyPooling(prePooled, postPooled, sameProject, newProject bool) (PoolingCase, error) {
	if sameProject {
		switch {
		case !prePooled && !postPooled:
			return UnpooledToUnpooled, nil
		case prePooled && postPooled:
			return PooledToPooledSame, nil
		}
		return 0, fmt.Errorf(
			"%w: same project with pre pooled=%t, post pooled=%t",
			ErrUnexpectedPoolingCase, prePooled, postPooled)
	}
	if newProject {
		return PooledToUnpooledNew, nil
	}
	switch {
	case prePooled && postPooled:
		return PooledToPooledDifferent, nil
	case !prePooled && postPooled:
		return UnpooledToPooled, nil
	case prePooled && !postPooled:
		return PooledToUnpooledOld, nil
	}
	return 0, fmt.Errorf(
		"%w: different projects with pre pooled=%t, post pooled=%t",
		ErrUnexpectedPoolingCase, prePooled, postPooled)
}
