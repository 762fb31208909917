package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paramsFor(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParseDefaults(t *testing.T) {
	p := paramsFor("")
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestParseClampsInvalidValues(t *testing.T) {
	p := paramsFor("page=-3&limit=0")
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)

	p = paramsFor("page=4&limit=500")
	assert.Equal(t, 4, p.Page)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 300, p.Offset)
}

func TestWindow(t *testing.T) {
	start, end := Window(1, 3, 5)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)

	start, end = Window(2, 3, 5)
	assert.Equal(t, 3, start)
	assert.Equal(t, 5, end)

	// Past the end: empty window.
	start, end = Window(3, 3, 5)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)

	start, end = Window(1, 10, 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
}
