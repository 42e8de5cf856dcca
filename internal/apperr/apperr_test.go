package apperr

import (
	"errors"
	"os"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound(os.ErrNotExist, "table: %s", "a.csv"), KindNotFound},
		{"parse", Parse(nil, "bad csv"), KindParse},
		{"schema", Schema(nil, "column %q missing", "id"), KindSchema},
		{"render", Render(errors.New("boom"), "render"), KindRender},
		{"plain", errors.New("plain"), KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := eris.Wrap(Schema(nil, "column %q missing", "price"), "quick map")
	assert.True(t, Is(err, KindSchema))
	assert.False(t, Is(err, KindParse))
	assert.Contains(t, err.Error(), `column "price" missing`)
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := NotFound(os.ErrNotExist, "geo: open %s", "x.geojson")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(NotFound(nil, "x")))
	assert.Equal(t, 3, ExitCode(Parse(nil, "x")))
	assert.Equal(t, 4, ExitCode(Schema(nil, "x")))
	assert.Equal(t, 5, ExitCode(Render(nil, "x")))
	assert.Equal(t, 1, ExitCode(errors.New("x")))
}
