package rule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

var now = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func eval(t *testing.T, src string, v metadata.Value) bool {
	t.Helper()
	ok, err := MustCompile(src).Eval(v, now)
	require.NoError(t, err, src)
	return ok
}

func TestEval_DateWindow(t *testing.T) {
	begin := "date(value) <= now + 8d"
	end := "date(DATA_VALUE) >= today"

	assert.True(t, eval(t, begin, metadata.String("2024-05-15")))
	assert.False(t, eval(t, begin, metadata.String("2024-05-30")))
	assert.True(t, eval(t, end, metadata.String("2024-05-10")), "same day still counts")
	assert.False(t, eval(t, end, metadata.String("2024-05-09")))
	assert.True(t, eval(t, end, metadata.String("2024-05-11T08:00:00Z")))
	assert.True(t, eval(t, "date(value) > now - 2h", metadata.String("2024-05-10 14:00:00")))
}

func TestEval_TextAndNumbers(t *testing.T) {
	tests := []struct {
		src  string
		v    metadata.Value
		want bool
	}{
		{"value == 'x'", metadata.String("x"), true},
		{`value != "x"`, metadata.String("x"), false},
		{"number(value) > 10", metadata.String("12.5"), true},
		{"value >= -1", metadata.Number(-1), true},
		{"value < 3 and value > 1", metadata.Number(2), true},
		{"value < 3 and value > 1", metadata.Number(5), false},
		{"value == 1 or value == 2", metadata.Number(2), true},
		{"not value == 1", metadata.Number(2), true},
		{"lower(value) in ['warszawa', 'kraków']", metadata.String("Kraków"), true},
		{"'sport' in value", metadata.List(metadata.String("sport")), true},
		{"'port' in value", metadata.String("airport"), true},
		{"text(value) == '3'", metadata.Number(3), true},
		{"value == true", metadata.Bool(true), true},
		{"(value == 1 or value == 2) and not (value == 2)", metadata.Number(1), true},
		{"value in []", metadata.Number(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.src, tt.v))
		})
	}
}

func TestEval_TypeErrors(t *testing.T) {
	tests := []struct {
		src string
		v   metadata.Value
	}{
		{"value > 1", metadata.String("2")},
		{"date(value) > now", metadata.String("not a date")},
		{"number(value) > 1", metadata.String("abc")},
		{"value", metadata.String("x")},
		{"value + 1d > now", metadata.String("2024-01-01")},
		{"value == 1", metadata.Map(nil)},
		{"value == 1", metadata.Null()},
		{"value == 1 and value", metadata.Number(1)},
		{"lower(value) == 'x'", metadata.Number(1)},
		{"value in 3", metadata.Number(3)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := MustCompile(tt.src).Eval(tt.v, now)
			assert.ErrorIs(t, err, domain.ErrTypeMismatch)
		})
	}
}

func TestEval_ShortCircuit(t *testing.T) {
	// right side would be a type error
	assert.False(t, eval(t, "value == 2 and value > 'x'", metadata.Number(1)))
	assert.True(t, eval(t, "value == 1 or value > 'x'", metadata.Number(1)))
}

func TestCompile_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"value ==",
		"value = 1",
		"datetime.datetime.strptime('DATA_VALUE', '%Y-%m-%d') <= datetime.datetime.now()",
		"unknown(value)",
		"value == 'open",
		"(value == 1",
		"value == 1 2",
		"now + 8",
		"[1, 2",
		"value # 1",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
		})
	}
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "value == 1", MustCompile("value == 1").String())
}
