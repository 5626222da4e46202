package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCameras_Empty(t *testing.T) {
	for _, literal := range []string{"", "{}"} {
		cams, err := ParseCameras(literal)
		require.NoError(t, err, "literal %q", literal)
		assert.Empty(t, cams)
	}
}

func TestParseCameras_MappingLiteral(t *testing.T) {
	cams, err := ParseCameras(`{ front: {type: opencv, index_or_path: 0, width: 1920, height: 1080, fps: 30}}`)
	require.NoError(t, err)

	require.Contains(t, cams, "front")
	front := cams["front"]
	assert.Equal(t, "opencv", front.Type)
	assert.Equal(t, 1920, front.Width)
	assert.Equal(t, 1080, front.Height)
	assert.Equal(t, 30, front.FPS)
}

func TestParseCameras_Invalid(t *testing.T) {
	_, err := ParseCameras(`{ front: [`)
	assert.Error(t, err)
}
