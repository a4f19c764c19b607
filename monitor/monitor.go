package monitor

import (
	"crypto/subtle"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultTailBytes = 256 * 1024

// Register mounts /metrics, the token-protected log tail and the monitor page.
// When token is empty the log routes are not registered.
func Register(router *gin.Engine, token, logFile string) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if token == "" {
		return
	}
	RegisterLogsRoute(router, token, logFile)
	RegisterMonitorPage(router, token)
}

// RegisterMonitorPage serves a small HTML page that polls health and the log tail.
func RegisterMonitorPage(router *gin.Engine, token string) {
	router.GET("/monitor", func(c *gin.Context) {
		if !tokenMatches(c.Query("token"), token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(monitorPage))
	})
}

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Research Showcase Monitor</title>
  <style>
    body { margin: 0; padding: 24px; background: #111827; color: #e5e7eb; font-family: system-ui, sans-serif; }
    main { max-width: 1100px; margin: 0 auto; }
    h1 { font-size: 1.6rem; margin: 0 0 1rem; }
    .bar { display: flex; justify-content: space-between; align-items: center; margin-bottom: 1rem; }
    #status.ok { color: #34d399; }
    #status.down { color: #f87171; }
    pre { background: #030712; border: 1px solid #374151; border-radius: 8px; padding: 1rem;
          max-height: 70vh; overflow-y: auto; white-space: pre-wrap; font-size: 0.8rem; line-height: 1.5; }
    button { background: #4f46e5; color: #fff; border: 0; border-radius: 6px; padding: 0.5rem 1rem; cursor: pointer; }
  </style>
</head>
<body>
<main>
  <h1>Research Showcase Monitor</h1>
  <div class="bar">
    <span id="status">Checking...</span>
    <button id="toggle">Pause</button>
  </div>
  <pre id="logs">Loading logs...</pre>
</main>
<script>
  const token = new URLSearchParams(location.search).get('token') || '';
  const statusEl = document.getElementById('status');
  const logsEl = document.getElementById('logs');
  const toggle = document.getElementById('toggle');
  let live = true;

  async function refresh() {
    try {
      const res = await fetch('/api/v1/health');
      const body = await res.json();
      statusEl.textContent = body.status === 'ok' ? 'Online' : 'Degraded';
      statusEl.className = body.status === 'ok' ? 'ok' : 'down';
    } catch (e) {
      statusEl.textContent = 'Offline';
      statusEl.className = 'down';
    }
    if (!live) return;
    const logs = await fetch('/monitor/logs?token=' + encodeURIComponent(token));
    logsEl.textContent = await logs.text();
    logsEl.scrollTop = logsEl.scrollHeight;
  }

  toggle.onclick = () => { live = !live; toggle.textContent = live ? 'Pause' : 'Resume'; };
  refresh();
  setInterval(refresh, 5000);
</script>
</body>
</html>`

// RegisterLogsRoute serves the tail of the log file. ?bytes= overrides the tail size.
func RegisterLogsRoute(router *gin.Engine, token, logFile string) {
	router.GET("/monitor/logs", func(c *gin.Context) {
		if !tokenMatches(c.Query("token"), token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		n := int64(defaultTailBytes)
		if v, err := strconv.ParseInt(c.Query("bytes"), 10, 64); err == nil && v > 0 && v <= 8*defaultTailBytes {
			n = v
		}
		data, err := tailFile(logFile, n)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	})
}

func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func tailFile(path string, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := st.Size() - n
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}
