// Package policy exposes a trained trading policy as a black-box function:
// observation vector in, one discrete action index per tracked symbol out.
// How the policy was trained is none of this package's business.
package policy

// Policy decides actions from an observation vector. The vector layout
// (balance, positions, price window) is owned by the caller; the policy
// only requires the agreed length.
type Policy interface {
	Decide(obs []float32) ([]int, error)
	Close() error
}
