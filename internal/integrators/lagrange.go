package integrators

// lagrangeWeights returns w with p(x) = Σ w[j]·y[j] for the polynomial
// through (nodes[j], y[j]).
func lagrangeWeights(nodes []float64, x float64) []float64 {
	w := make([]float64, len(nodes))
	for j := range nodes {
		l := 1.0
		for m := range nodes {
			if m != j {
				l *= (x - nodes[m]) / (nodes[j] - nodes[m])
			}
		}
		w[j] = l
	}
	return w
}

// lagrangeDerivWeights returns w with p′(x) = Σ w[j]·y[j]. Evaluated at
// nodes[0] for the BDF nodes, w[0] is the leading coefficient cj.
func lagrangeDerivWeights(nodes []float64, x float64) []float64 {
	w := make([]float64, len(nodes))
	for j := range nodes {
		sum := 0.0
		for m := range nodes {
			if m == j {
				continue
			}
			prod := 1 / (nodes[j] - nodes[m])
			for l := range nodes {
				if l != j && l != m {
					prod *= (x - nodes[l]) / (nodes[j] - nodes[l])
				}
			}
			sum += prod
		}
		w[j] = sum
	}
	return w
}
