package stage

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	dsp "github.com/thesyncim/godsp"
)

// MatrixTransform implements a train-then-apply architecture: PCA, ZCA
// whitening, and FastICA are all trained once, offline, into a
// (mean, matrix) pair; the streaming stage then applies y = M*(x-mean) per
// frame. Output channel count equals the matrix's row count, which may
// differ from the input (PCA dimensionality reduction).
type MatrixTransform[T dsp.Sample] struct {
	mean   []float64
	matrix [][]float64 // outputDim x inputDim

	numChannels int
	outputDim   int
}

// NewMatrixTransform wraps a pre-trained mean vector and projection matrix
// as a stage. len(mean) is the expected input channel count; len(matrix) is
// the output channel count.
func NewMatrixTransform[T dsp.Sample](mean []float64, matrix [][]float64) (*MatrixTransform[T], error) {
	if len(mean) == 0 || len(matrix) == 0 {
		return nil, fmt.Errorf("%w: matrixTransform: mean and matrix must be non-empty", dsp.ErrInvalidArgument)
	}
	for _, row := range matrix {
		if len(row) != len(mean) {
			return nil, fmt.Errorf("%w: matrixTransform: matrix row width must match mean length", dsp.ErrInvalidArgument)
		}
	}
	return &MatrixTransform[T]{mean: mean, matrix: matrix, outputDim: len(matrix)}, nil
}

func (m *MatrixTransform[T]) Init(inputChannels int, _ float64) error {
	if inputChannels != len(m.mean) {
		return fmt.Errorf("%w: matrixTransform trained for %d channels, got %d", dsp.ErrShapeMismatch, len(m.mean), inputChannels)
	}
	m.numChannels = inputChannels
	return nil
}

func (m *MatrixTransform[T]) InputChannels() int  { return m.numChannels }
func (m *MatrixTransform[T]) OutputChannels() int { return m.outputDim }
func (m *MatrixTransform[T]) Latency() int        { return 0 }
func (m *MatrixTransform[T]) MaxOutputFrames(inFrames int) int { return inFrames }

func (m *MatrixTransform[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := m.numChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: matrixTransform: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	centered := make([]float64, ch)
	for f := 0; f < inFrames; f++ {
		for c := 0; c < ch; c++ {
			centered[c] = float64(in[f*ch+c]) - m.mean[c]
		}
		for r := 0; r < m.outputDim; r++ {
			row := m.matrix[r]
			var sum float64
			for c := 0; c < ch; c++ {
				sum += row[c] * centered[c]
			}
			out[f*m.outputDim+r] = T(sum)
		}
	}
	return inFrames, nil
}

func (m *MatrixTransform[T]) Reset() {}

func (m *MatrixTransform[T]) Type() string { return "matrixTransform" }

func (m *MatrixTransform[T]) Serialize() ([]byte, error) {
	buf := appendUint32(nil, uint32(m.numChannels))
	buf = appendUint32(buf, uint32(m.outputDim))
	for _, v := range m.mean {
		buf = appendFloat64(buf, v)
	}
	for _, row := range m.matrix {
		for _, v := range row {
			buf = appendFloat64(buf, v)
		}
	}
	return buf, nil
}

func (m *MatrixTransform[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	outDim, err := r.uint32()
	if err != nil {
		return err
	}
	if int(channels) != m.numChannels || int(outDim) != m.outputDim {
		return fmt.Errorf("%w: matrixTransform shape mismatch", dsp.ErrStateMismatch)
	}
	mean := make([]float64, channels)
	for i := range mean {
		v, err := r.float64()
		if err != nil {
			return err
		}
		mean[i] = v
	}
	matrix := make([][]float64, outDim)
	for i := range matrix {
		row := make([]float64, channels)
		for j := range row {
			v, err := r.float64()
			if err != nil {
				return err
			}
			row[j] = v
		}
		matrix[i] = row
	}
	m.mean = mean
	m.matrix = matrix
	return nil
}

// TrainPCA computes the mean and top-components principal-component matrix
// from a training buffer laid out frames x channels, using gonum's
// symmetric eigendecomposition of the sample covariance matrix.
func TrainPCA(frames [][]float64, components int) (mean []float64, matrix [][]float64, err error) {
	mean, cov, err := covariance(frames)
	if err != nil {
		return nil, nil, err
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil, nil, fmt.Errorf("%w: pca: eigendecomposition failed", dsp.ErrNumericalError)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	n, _ := vectors.Dims()
	if components <= 0 || components > n {
		components = n
	}
	order := sortedIndicesDescending(values)
	matrix = make([][]float64, components)
	for r := 0; r < components; r++ {
		col := order[r]
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			row[i] = vectors.At(i, col)
		}
		matrix[r] = row
	}
	return mean, matrix, nil
}

// TrainZCAWhitening computes a zero-phase whitening matrix: M = V *
// diag(1/sqrt(eigenvalues+eps)) * V^T, applied as y = M*(x-mean).
func TrainZCAWhitening(frames [][]float64, epsilon float64) (mean []float64, matrix [][]float64, err error) {
	mean, cov, err := covariance(frames)
	if err != nil {
		return nil, nil, err
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil, nil, fmt.Errorf("%w: zcaWhitening: eigendecomposition failed", dsp.ErrNumericalError)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	n, _ := vectors.Dims()

	dInvSqrt := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		dInvSqrt.Set(i, i, 1/math.Sqrt(values[i]+epsilon))
	}
	var tmp, whiten mat.Dense
	tmp.Mul(&vectors, dInvSqrt)
	whiten.Mul(&tmp, vectors.T())

	matrix = make([][]float64, n)
	for r := 0; r < n; r++ {
		row := make([]float64, n)
		for c := 0; c < n; c++ {
			row[c] = whiten.At(r, c)
		}
		matrix[r] = row
	}
	return mean, matrix, nil
}

// TrainFastICA runs a deflation-based FastICA (Hyvarinen's tanh-nonlinearity
// fixed-point algorithm) on a ZCA-whitened training buffer, returning the
// combined whitening+unmixing matrix and the training mean.
func TrainFastICA(frames [][]float64, components, iterations int) (mean []float64, matrix [][]float64, err error) {
	mean, whiten, err := TrainZCAWhitening(frames, 1e-6)
	if err != nil {
		return nil, nil, err
	}
	n := len(mean)
	if components <= 0 || components > n {
		components = n
	}
	whitenMat := denseFromRows(whiten)

	samples := mat.NewDense(len(frames), n, nil)
	for i, f := range frames {
		centered := make([]float64, n)
		for c := 0; c < n; c++ {
			centered[c] = f[c] - mean[c]
		}
		samples.SetRow(i, centered)
	}
	var whitened mat.Dense
	whitened.Mul(samples, whitenMat.T())
	numSamples, _ := whitened.Dims()

	w := mat.NewDense(components, n, nil)
	for c := 0; c < components; c++ {
		row := make([]float64, n)
		row[c%n] = 1
		w.SetRow(c, row)
	}

	for c := 0; c < components; c++ {
		wc := make([]float64, n)
		mat.Row(wc, c, w)
		for iter := 0; iter < iterations; iter++ {
			wNew := make([]float64, n)
			var gPrimeSum float64
			for s := 0; s < numSamples; s++ {
				row := make([]float64, n)
				mat.Row(row, s, &whitened)
				dot := dot(wc, row)
				g := math.Tanh(dot)
				gPrime := 1 - g*g
				for j := range wNew {
					wNew[j] += row[j] * g
				}
				gPrimeSum += gPrime
			}
			avg := float64(numSamples)
			for j := range wNew {
				wNew[j] = wNew[j]/avg - (gPrimeSum/avg)*wc[j]
			}
			orthogonalizeAgainstPrevious(wNew, w, c)
			normalize(wNew)
			wc = wNew
		}
		w.SetRow(c, wc)
	}

	result := mat.NewDense(components, n, nil)
	result.Mul(w, whitenMat)
	matrix = make([][]float64, components)
	for r := 0; r < components; r++ {
		row := make([]float64, n)
		mat.Row(row, r, result)
		matrix[r] = row
	}
	return mean, matrix, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm < 1e-12 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}

// orthogonalizeAgainstPrevious applies Gram-Schmidt deflation: subtracts the
// projection of v onto each already-solved row of w so successive
// components stay decorrelated, as FastICA's deflationary mode requires.
func orthogonalizeAgainstPrevious(v []float64, w *mat.Dense, upto int) {
	n := len(v)
	for p := 0; p < upto; p++ {
		prev := make([]float64, n)
		mat.Row(prev, p, w)
		proj := dot(v, prev)
		for i := range v {
			v[i] -= proj * prev[i]
		}
	}
}

func denseFromRows(rows [][]float64) *mat.Dense {
	n := len(rows)
	m := 0
	if n > 0 {
		m = len(rows[0])
	}
	d := mat.NewDense(n, m, nil)
	for i, row := range rows {
		d.SetRow(i, row)
	}
	return d
}

func covariance(frames [][]float64) (mean []float64, cov *mat.SymDense, err error) {
	if len(frames) < 2 {
		return nil, nil, fmt.Errorf("%w: matrix training needs at least 2 frames", dsp.ErrInvalidArgument)
	}
	n := len(frames[0])
	mean = make([]float64, n)
	for _, f := range frames {
		for c := 0; c < n; c++ {
			mean[c] += f[c]
		}
	}
	for c := range mean {
		mean[c] /= float64(len(frames))
	}

	data := mat.NewDense(len(frames), n, nil)
	for i, f := range frames {
		data.SetRow(i, f)
	}
	cov = mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	return mean, cov, nil
}

func sortedIndicesDescending(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && values[idx[j]] > values[idx[j-1]]; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	return idx
}

func init() {
	dsp.RegisterStageFactory[float64]("matrixTransform", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildMatrixTransform[float64](p)
	})
	dsp.RegisterStageFactory[float32]("matrixTransform", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildMatrixTransform[float32](p)
	})
}

func buildMatrixTransform[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "matrixTransform", "mean", "matrix"); err != nil {
		return nil, err
	}
	mean, ok := paramFloatSlice(p, "mean")
	if !ok {
		return nil, fmt.Errorf("%w: matrixTransform requires a pre-trained mean[]", dsp.ErrInvalidArgument)
	}
	rowsRaw, ok := p["matrix"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: matrixTransform requires a pre-trained matrix[][]", dsp.ErrInvalidArgument)
	}
	matrix := make([][]float64, len(rowsRaw))
	for i, r := range rowsRaw {
		vals, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: matrixTransform matrix rows must be numeric arrays", dsp.ErrInvalidArgument)
		}
		row := make([]float64, len(vals))
		for j, v := range vals {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("%w: matrixTransform matrix rows must be numeric arrays", dsp.ErrInvalidArgument)
			}
			row[j] = f
		}
		matrix[i] = row
	}
	return NewMatrixTransform[T](mean, matrix)
}
