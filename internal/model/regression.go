package model

import (
	"fmt"
	"math"

	"github.com/demandcast/backend-go/internal/domain"
)

// Coefficients is a fitted linear model with intercept.
type Coefficients struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
}

// Predict evaluates the model on one feature row. The row must follow the
// training-time column order.
func (c *Coefficients) Predict(row []float64) float64 {
	yhat := c.Intercept
	n := len(c.Weights)
	if len(row) < n {
		n = len(row)
	}
	for i := 0; i < n; i++ {
		yhat += c.Weights[i] * row[i]
	}
	return yhat
}

// fitRidge fits a ridge-regularized linear regression by solving the normal
// equations (X'X + λI)β = X'y with a Cholesky decomposition. The intercept
// is left unpenalized. A non-positive-definite system reports
// ErrModelFitting.
func fitRidge(rows [][]float64, target []float64, lambda float64) (*Coefficients, error) {
	n := len(rows)
	if n == 0 || n != len(target) {
		return nil, fmt.Errorf("%w: empty or mismatched training data", domain.ErrModelFitting)
	}
	k := len(rows[0]) + 1 // augmented with the intercept column

	// Build the (symmetric) normal-equation system over [1, x...] rows.
	a := make([][]float64, k)
	for i := range a {
		a[i] = make([]float64, k)
	}
	b := make([]float64, k)

	for r := 0; r < n; r++ {
		row := rows[r]
		a[0][0]++
		b[0] += target[r]
		for i, xi := range row {
			a[0][i+1] += xi
			a[i+1][0] += xi
			b[i+1] += xi * target[r]
			for j, xj := range row {
				a[i+1][j+1] += xi * xj
			}
		}
	}
	for i := 1; i < k; i++ {
		a[i][i] += lambda
	}

	beta, err := solveCholesky(a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelFitting, err)
	}

	return &Coefficients{Intercept: beta[0], Weights: beta[1:]}, nil
}

// solveCholesky solves A·x = b for symmetric positive definite A.
func solveCholesky(a [][]float64, b []float64) ([]float64, error) {
	k := len(a)
	l := make([][]float64, k)
	for i := range l {
		l[i] = make([]float64, k)
	}

	for i := 0; i < k; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for m := 0; m < j; m++ {
				sum -= l[i][m] * l[j][m]
			}
			if i == j {
				if sum <= 0 {
					return nil, fmt.Errorf("matrix is not positive definite")
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}

	// Forward then backward substitution.
	y := make([]float64, k)
	for i := 0; i < k; i++ {
		sum := b[i]
		for m := 0; m < i; m++ {
			sum -= l[i][m] * y[m]
		}
		y[i] = sum / l[i][i]
	}
	x := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		sum := y[i]
		for m := i + 1; m < k; m++ {
			sum -= l[m][i] * x[m]
		}
		x[i] = sum / l[i][i]
	}
	return x, nil
}

// meanAbsError scores predictions against the held-out target window.
func meanAbsError(c *Coefficients, rows [][]float64, target []float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for i, row := range rows {
		sum += math.Abs(c.Predict(row) - target[i])
	}
	return sum / float64(len(rows))
}
