// Command agitator exercises a running jaild instance: it registers
// officers, streams arrests, wanders subjects toward the exit and
// occasionally pays bail or a fine. Useful for soak testing and for
// watching the pipeline move without a game attached.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/sentence"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

var offensePool = [][]sentence.OffenseTag{
	{sentence.OffenseTrespassing},
	{sentence.OffensePettyTheft, sentence.OffenseVandalism},
	{sentence.OffenseTheft},
	{sentence.OffensePossession, sentence.OffenseEvasion},
	{sentence.OffenseAssault},
	{sentence.OffenseAssault, sentence.OffensePossession},
	{sentence.OffenseArmedRobbery},
	{sentence.OffenseOfficerAssault},
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "jaild base URL")
	subjects := flag.Int("subjects", 5, "number of simulated subjects")
	interval := flag.Duration("interval", 3*time.Second, "delay between actions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	flag.Parse()

	log := logger.NewLogger(false)
	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 5 * time.Second}

	a := &agitator{addr: *addr, client: client, rng: rng, logger: log}
	a.registerOfficers()
	go a.watchEvents()

	log.Infof("agitating %d subjects against %s", *subjects, *addr)
	for i := 0; ; i++ {
		id := fmt.Sprintf("sub-%03d", rng.Intn(*subjects))
		a.step(id)
		time.Sleep(*interval)
	}
}

type agitator struct {
	addr   string
	client *http.Client
	rng    *rand.Rand
	logger *logger.Logger
}

// registerOfficers posts a minimal duty roster so bookings can progress.
func (a *agitator) registerOfficers() {
	roster := []map[string]interface{}{
		{"id": "guard-1", "name": "Guard One", "role": "GUARD",
			"position": map[string]float64{"x": 0, "y": 0, "z": 0}},
		{"id": "guard-2", "name": "Guard Two", "role": "GUARD",
			"position": map[string]float64{"x": 10, "y": 0, "z": 0}},
		{"id": "escort-1", "name": "Escort One", "role": "RELEASE_ESCORT",
			"position": map[string]float64{"x": 15, "y": 0, "z": 0}},
	}
	for _, o := range roster {
		a.post("/api/officer", o)
	}
}

// step picks one plausible action for the subject based on its status.
func (a *agitator) step(id string) {
	status := a.status(id)
	switch status["state"] {
	case "booking":
		a.post("/api/booking/confirm", map[string]interface{}{
			"subject_id": id, "stage": status["detail"],
		})
		if a.rng.Float64() < 0.1 {
			a.post("/api/fine/pay", map[string]interface{}{"subject_id": id})
		}
	case "jailed":
		if a.rng.Float64() < 0.2 {
			a.post("/api/bail/pay", map[string]interface{}{"subject_id": id})
		}
	case "releasing":
		a.post("/api/release/confirm", map[string]interface{}{
			"subject_id": id, "stage": status["detail"],
		})
		// Wander toward the exit so egress can finish.
		a.post("/api/position", map[string]interface{}{
			"subject_id": id,
			"position":   map[string]float64{"x": 0, "y": 0, "z": -12},
		})
	case "parole":
		a.post("/api/position", map[string]interface{}{
			"subject_id": id,
			"position": map[string]float64{
				"x": a.rng.Float64()*100 - 50, "y": 0, "z": a.rng.Float64()*100 - 150,
			},
		})
	default:
		tags := offensePool[a.rng.Intn(len(offensePool))]
		a.post("/api/arrest", map[string]interface{}{
			"subject": map[string]interface{}{
				"id": id, "name": "Subject " + id,
				"level":       1 + a.rng.Intn(20),
				"wealth_tier": a.rng.Intn(4),
			},
			"officer_id": "guard-1",
			"tags":       tags,
		})
	}
}

// watchEvents tails the server's websocket event stream so a soak run shows
// what the pipeline is doing, reconnecting after any drop.
func (a *agitator) watchEvents() {
	wsURL := strings.Replace(a.addr, "http", "ws", 1) + "/ws"
	for {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			a.logger.Warnf("event stream dial %s: %v", wsURL, err)
			time.Sleep(5 * time.Second)
			continue
		}
		a.logger.Infof("event stream connected to %s", wsURL)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				a.logger.Warnf("event stream read: %v", err)
				break
			}
			var event events.GameEvent
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}
			a.logger.Infof("event %s subject=%s", event.Type, event.SubjectID)
		}
		conn.Close()
		time.Sleep(5 * time.Second)
	}
}

func (a *agitator) status(id string) map[string]interface{} {
	resp, err := a.client.Get(a.addr + "/api/subject/" + id + "/status")
	if err != nil {
		a.logger.Warnf("status %s: %v", id, err)
		return map[string]interface{}{}
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		a.logger.Warnf("decode status %s: %v", id, err)
		return map[string]interface{}{}
	}
	return out
}

func (a *agitator) post(path string, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		a.logger.Errorf("marshal %s: %v", path, err)
		return
	}
	resp, err := a.client.Post(a.addr+path, "application/json", bytes.NewReader(data))
	if err != nil {
		a.logger.Warnf("post %s: %v", path, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		a.logger.Warnf("post %s: status %d", path, resp.StatusCode)
	}
}
