package api

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// RegisterRoutes returns the status API with CORS and an access log written to accessLog.
func RegisterRoutes(s *Server, accessLog io.Writer) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.Health).Methods("GET")
	router.HandleFunc("/summary", s.Summary).Methods("GET")

	// frequency tables per source base
	router.HandleFunc("/frequencies/{base}/{column}", s.Frequencies).Methods("GET")

	// map data
	router.HandleFunc("/layers/{field}", s.Layers).Methods("GET")
	router.HandleFunc("/clusters", s.Clusters).Methods("GET")
	router.HandleFunc("/heat/frames", s.HeatFrames).Methods("GET")
	router.HandleFunc("/heat/cells", s.HeatCells).Methods("GET")

	// live log stream
	router.HandleFunc("/logs", s.Logs).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	var h http.Handler = cors(router)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}
