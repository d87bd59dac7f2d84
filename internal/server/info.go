package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.cfg)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.stats.Snapshot())
}

// handleLogs renders the log directory listing, newest first.
func (s *Server) handleLogs(c *gin.Context) {
	entries, err := os.ReadDir(s.cfg.Logging.Dir)
	if err != nil {
		plain(c, http.StatusInternalServerError, "Error(500) logs directory: %v", err)
		return
	}

	type logFile struct {
		Name    string
		Size    string
		ModTime string
		mod     time.Time
	}
	files := make([]logFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{
			Name:    entry.Name(),
			Size:    fmt.Sprintf("%8d", info.Size()),
			ModTime: fmt.Sprintf("%22s", strings.ToLower(info.ModTime().Format("2 Jan 2006 15:04:05"))),
			mod:     info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })

	c.HTML(http.StatusOK, "logs.html", gin.H{
		"Dir":   s.cfg.Logging.Dir,
		"Files": files,
		"Now":   time.Now().Format("[2006-01-02 15:04:05]"),
	})
}

// handleLogFile serves one file out of the log directory as plain text.
func (s *Server) handleLogFile(c *gin.Context) {
	name := c.Param("file")
	if name == "" {
		plain(c, http.StatusBadRequest, "Error(400) file name missing")
		return
	}
	// Names with separators or parent references never match a log file.
	if name != filepath.Base(name) || name == ".." {
		plain(c, http.StatusNotFound, "Error(404) file error %s", name)
		return
	}

	data, err := os.ReadFile(filepath.Join(s.cfg.Logging.Dir, name))
	if err != nil {
		plain(c, http.StatusNotFound, "Error(404) file error %v", err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}
