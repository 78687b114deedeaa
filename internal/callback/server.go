package callback

import (
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"gatherly/cmd/middleware"
)

// RedirectSink receives intercepted navigation URLs from the hosted
// payment page.
type RedirectSink interface {
	ReportRedirect(url string)
}

// Server is the loopback HTTP endpoint the hosted payment page redirects
// to. Each hit on a well-known callback path is forwarded, full URL
// included, to the currently attached sink. With no sink attached hits
// are acknowledged and dropped.
type Server struct {
	engine *ginext.Engine
	log    *zerolog.Logger

	mu   sync.Mutex
	sink RedirectSink
}

func NewServer(log *zerolog.Logger) *Server {
	s := &Server{log: log}

	app := ginext.New("release")
	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	app.GET("/payment/success", s.handle)
	app.GET("/payment/failure", s.handle)

	s.engine = app
	return s
}

// Attach points incoming callbacks at the watcher for the checkout in
// flight. Detach with a nil sink once the checkout resolves.
func (s *Server) Attach(sink RedirectSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Server) handle(c *ginext.Context) {
	url := c.Request.URL.String()

	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.ReportRedirect(url)
	} else {
		s.log.Debug().Str("url", url).Msg("payment callback with no checkout in flight")
	}

	c.String(200, "Payment recorded. You can return to the app.")
}

// Run blocks serving callbacks on addr.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Engine exposes the underlying router, used by tests to drive requests
// without a listener.
func (s *Server) Engine() *ginext.Engine {
	return s.engine
}
