package neural_network

import (
	"math"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Hidden layer activations.
const (
	ActivationLogistic = "logistic"
	ActivationTanh     = "tanh"
	ActivationReLU     = "relu"
	ActivationIdentity = "identity"
)

// activate returns f(z).
func activate(name string, z float64) float64 {
	switch name {
	case ActivationLogistic:
		return errors.Sigmoid(z)
	case ActivationTanh:
		return math.Tanh(z)
	case ActivationReLU:
		return math.Max(0, z)
	default:
		return z
	}
}

// derivative returns f'(z) expressed through the activation output a = f(z).
func derivative(name string, a float64) float64 {
	switch name {
	case ActivationLogistic:
		return a * (1 - a)
	case ActivationTanh:
		return 1 - a*a
	case ActivationReLU:
		if a > 0 {
			return 1
		}
		return 0
	default:
		return 1
	}
}
