package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

type equipment struct {
	EquipmentID   string `json:"equipment_id"`
	EquipmentType string `json:"equipment_type"`
	Location      string `json:"location"`
}

type failure struct {
	DowntimeID       string  `json:"downtime_id"`
	EquipmentID      string  `json:"equipment_id"`
	FailureDate      string  `json:"failure_date"`
	DowntimeHours    float64 `json:"downtime_hours"`
	RepairCost       float64 `json:"repair_cost"`
	FailureType      string  `json:"failure_type"`
	FailureComponent string  `json:"failure_component"`
}

var (
	equipmentTypes = []string{"Excavator", "Bulldozer", "Dump Truck", "Crane", "Loader", "Grader"}
	locations      = []string{"Site_A", "Site_B", "Site_C", "Site_D", "Site_E"}
	failureTypes   = []string{"Mechanical", "Electrical", "Hydraulic", "Engine", "Structural"}
	components     = []string{"Engine", "Transmission", "Hydraulic Pump", "Alternator", "Brake System",
		"Cooling System", "Fuel System", "Undercarriage", "Boom", "Bucket"}
)

// generateFleet builds a deterministic fleet with 5-20 failures per asset spread over the
// two years before end.
func generateFleet(size int, seed uint64, end time.Time) ([]equipment, []failure) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	start := end.AddDate(-2, 0, 0)
	span := int(end.Sub(start).Hours() / 24)

	fleet := make([]equipment, 0, size)
	var events []failure
	for i := 1; i <= size; i++ {
		id := fmt.Sprintf("EQ%04d", i)
		fleet = append(fleet, equipment{
			EquipmentID:   id,
			EquipmentType: equipmentTypes[rng.IntN(len(equipmentTypes))],
			Location:      locations[rng.IntN(len(locations))],
		})
		for n := 5 + rng.IntN(16); n > 0; n-- {
			events = append(events, failure{
				DowntimeID:       fmt.Sprintf("DT%05d", len(events)+1),
				EquipmentID:      id,
				FailureDate:      start.AddDate(0, 0, rng.IntN(span+1)).Format("2006-01-02 15:04:05"),
				DowntimeHours:    round2(2 + rng.Float64()*70),
				RepairCost:       round2(500 + rng.Float64()*49500),
				FailureType:      failureTypes[rng.IntN(len(failureTypes))],
				FailureComponent: components[rng.IntN(len(components))],
			})
		}
	}
	return fleet, events
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	size := flag.Int("equipment", 50, "number of assets")
	seed := flag.Uint64("seed", 42, "generator seed")
	flag.Parse()

	fleet, events := generateFleet(*size, *seed, time.Now().UTC().Truncate(24*time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/equipment", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		writeJSON(w, map[string]any{"equipment": fleet})
	})

	mux.HandleFunc("/api/v1/failures", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		writeJSON(w, map[string]any{"failures": events})
	})

	logger := log.New(log.Writer(), "registry-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    *addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("serving %d assets and %d failures on %s", len(fleet), len(events), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforceGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
