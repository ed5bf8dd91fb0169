package formula

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var venteVars = []string{"montant_total", "montant_especes", "montant_mobile", "ecart", "fond_caisse"}

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr string
	}{
		{name: "single variable", expr: "montant_total"},
		{name: "arithmetic", expr: "montant_especes + montant_mobile * 0.5"},
		{name: "functions", expr: "max(ecart, 0) + abs(min(ecart, 0))"},
		{name: "unknown variable", expr: "montant_ttc * 1.18", wantErr: "variable inconnue"},
		{name: "syntax error", expr: "montant_total +", wantErr: "invalide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr, venteVars)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, f.String())
		})
	}
}

func TestEval(t *testing.T) {
	vars := map[string]decimal.Decimal{
		"montant_total":   decimal.NewFromInt(15000),
		"montant_especes": decimal.NewFromInt(10000),
		"montant_mobile":  decimal.NewFromInt(5000),
		"ecart":           decimal.NewFromInt(-500),
	}

	tests := []struct {
		expr   string
		places int32
		want   string
	}{
		{"montant_total", 0, "15000"},
		{"montant_especes + montant_mobile", 0, "15000"},
		{"montant_total / 3", 2, "5000"},
		{"montant_total / 7", 2, "2142.86"},
		{"montant_total / 7", 0, "2143"},
		{"max(ecart, 0)", 0, "0"},
		{"abs(min(ecart, 0))", 0, "500"},
		{"fond_caisse", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr, venteVars)
			require.NoError(t, err)

			got, err := f.Eval(vars, tt.places)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestEval_NonNumeric(t *testing.T) {
	f, err := Compile("montant_total > 0", venteVars)
	require.NoError(t, err)

	_, err = f.Eval(map[string]decimal.Decimal{"montant_total": decimal.NewFromInt(1)}, 0)
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestEval_DivisionByZero(t *testing.T) {
	f, err := Compile("montant_total / ecart", venteVars)
	require.NoError(t, err)

	_, err = f.Eval(map[string]decimal.Decimal{"montant_total": decimal.NewFromInt(1)}, 0)
	assert.Error(t, err)
}
