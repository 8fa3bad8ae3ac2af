package neural_network

import "math"

// Solvers supported by MLPClassifier.
const (
	SolverSGD  = "sgd"
	SolverAdam = "adam"
)

// optimizer updates parameter slices in place from their gradients. params
// and grads are parallel lists of flat views into the weight matrices and
// bias vectors.
type optimizer interface {
	step(params, grads [][]float64)
}

// sgd is stochastic gradient descent with Nesterov momentum.
type sgd struct {
	learningRate float64
	momentum     float64
	velocities   [][]float64
}

func newSGD(params [][]float64, learningRate, momentum float64) *sgd {
	return &sgd{learningRate: learningRate, momentum: momentum, velocities: zerosLike(params)}
}

func (o *sgd) step(params, grads [][]float64) {
	for k, p := range params {
		v, g := o.velocities[k], grads[k]
		for i := range p {
			v[i] = o.momentum*v[i] - o.learningRate*g[i]
			p[i] += o.momentum*v[i] - o.learningRate*g[i]
		}
	}
}

// adam is the Adam optimizer of Kingma and Ba.
type adam struct {
	learningRate float64
	beta1, beta2 float64
	epsilon      float64
	t            int
	ms, vs       [][]float64
}

func newAdam(params [][]float64, learningRate float64) *adam {
	return &adam{
		learningRate: learningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
		ms:           zerosLike(params),
		vs:           zerosLike(params),
	}
}

func (o *adam) step(params, grads [][]float64) {
	o.t++
	lr := o.learningRate * math.Sqrt(1-math.Pow(o.beta2, float64(o.t))) / (1 - math.Pow(o.beta1, float64(o.t)))
	for k, p := range params {
		m, v, g := o.ms[k], o.vs[k], grads[k]
		for i := range p {
			m[i] = o.beta1*m[i] + (1-o.beta1)*g[i]
			v[i] = o.beta2*v[i] + (1-o.beta2)*g[i]*g[i]
			p[i] -= lr * m[i] / (math.Sqrt(v[i]) + o.epsilon)
		}
	}
}

func zerosLike(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = make([]float64, len(p))
	}
	return out
}
