package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reportcloud/relaybot/internal/fileid"
)

// downloadHandler serves `<download-base>/<FileID>.<ext>`. The id part
// of the path must decode as a file identifier; anything else is an
// unknown path and yields 404, same as an id with no local copy.
func downloadHandler(dir string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		name := filepath.Base(ctx.Param("name"))
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if !fileid.Valid(id) {
			ctx.String(http.StatusNotFound, "not found")
			return
		}

		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			ctx.String(http.StatusNotFound, "not found")
			return
		}

		ctx.FileAttachment(path, name)
	}
}
