package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"", 1, 20, 0},
		{"page=3&limit=10", 3, 10, 20},
		{"page=0&limit=-5", 1, 20, 0},
		{"page=abc&limit=500", 1, 100, 0},
		{"page=2&limit=100", 2, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)

			p := Parse(c)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}

func TestResult(t *testing.T) {
	paged := Clamp(2, 5).Result([]string{"a"}, 6)
	assert.Equal(t, int64(6), paged.Total)
	assert.Equal(t, 2, paged.Page)
	assert.Equal(t, 5, paged.Limit)
	assert.Equal(t, []string{"a"}, paged.Items)
}
