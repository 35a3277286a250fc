package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type LoadTestResult struct {
	TotalBots           int64
	SuccessfulBots      int64
	FailedBots          int64
	WordsSubmitted      int64
	WordsCleared        int64
	TotalDuration       time.Duration
	AverageClearLatency time.Duration
	MinClearLatency     time.Duration
	MaxClearLatency     time.Duration
	SubmitsPerSecond    float64
}

type BotResult struct {
	BotID     int
	Success   bool
	Submitted int64
	Cleared   int64
	Latencies []time.Duration
	Error     error
}

type sessionResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

type serverEvent struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	Target   string `json:"target_pid"`
	WordID   string `json:"word_id"`
	Word     struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"word"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	bots := flag.Int("bots", 100, "concurrent practice matches")
	duration := flag.Duration("duration", time.Minute, "how long each bot plays")
	difficulty := flag.String("difficulty", "easy", "practice difficulty")
	flag.Parse()

	// For quick test
	if flag.Arg(0) == "quick" {
		*bots = 5
		*duration = 10 * time.Second
		log.Info().Msg("quick test mode: 5 bots for 10s")
	}

	log.Info().Int("bots", *bots).Dur("duration", *duration).Str("url", *baseURL).Msg("starting load test")
	result := runLoadTest(*baseURL, *difficulty, *bots, *duration)
	printResults(result)
}

func runLoadTest(baseURL, difficulty string, bots int, duration time.Duration) LoadTestResult {
	var (
		successfulBots int64
		failedBots     int64
		submitted      int64
		cleared        int64
		totalLatency   int64
		latencyCount   int64
		minLatency     int64 = 1<<63 - 1
		maxLatency     int64
		mu             sync.Mutex
	)

	resultChan := make(chan BotResult, bots)

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < bots; i++ {
		wg.Add(1)
		go func(botID int) {
			defer wg.Done()
			resultChan <- playMatch(baseURL, difficulty, botID, duration)
		}(i + 1)
	}

	// Collect results
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range resultChan {
			if result.Success {
				atomic.AddInt64(&successfulBots, 1)
			} else {
				atomic.AddInt64(&failedBots, 1)
				log.Warn().Err(result.Error).Int("bot", result.BotID).Msg("bot failed")
			}
			atomic.AddInt64(&submitted, result.Submitted)
			atomic.AddInt64(&cleared, result.Cleared)

			mu.Lock()
			for _, l := range result.Latencies {
				d := int64(l)
				totalLatency += d
				latencyCount++
				if d < minLatency {
					minLatency = d
				}
				if d > maxLatency {
					maxLatency = d
				}
			}
			mu.Unlock()
		}
	}()

	wg.Wait()
	close(resultChan)
	<-done
	elapsed := time.Since(startTime)

	mu.Lock()
	defer mu.Unlock()
	avg := time.Duration(0)
	if latencyCount > 0 {
		avg = time.Duration(totalLatency / latencyCount)
	} else {
		minLatency = 0
	}

	return LoadTestResult{
		TotalBots:           int64(bots),
		SuccessfulBots:      successfulBots,
		FailedBots:          failedBots,
		WordsSubmitted:      submitted,
		WordsCleared:        cleared,
		TotalDuration:       elapsed,
		AverageClearLatency: avg,
		MinClearLatency:     time.Duration(minLatency),
		MaxClearLatency:     time.Duration(maxLatency),
		SubmitsPerSecond:    float64(submitted) / elapsed.Seconds(),
	}
}

// playMatch opens a practice match and types every word that spawns for
// the bot until the duration elapses or the match ends.
func playMatch(baseURL, difficulty string, botID int, duration time.Duration) BotResult {
	result := BotResult{BotID: botID}

	sess, err := createPractice(baseURL, difficulty, botID)
	if err != nil {
		result.Error = err
		return result
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/" + sess.Code + "?token=" + sess.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("dial: %w", err)
		return result
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "start_game"}); err != nil {
		result.Error = fmt.Errorf("start: %w", err)
		return result
	}

	pending := make(map[string]time.Time)
	deadline := time.Now().Add(duration)
	_ = conn.SetReadDeadline(deadline)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if time.Now().After(deadline) {
				result.Success = true
			} else {
				result.Error = err
			}
			return result
		}
		var ev serverEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "word_spawn":
			if ev.Target != sess.PlayerID {
				continue
			}
			pending[ev.Word.ID] = time.Now()
			if err := conn.WriteJSON(map[string]string{"type": "submit_word", "word": ev.Word.Text}); err != nil {
				result.Error = fmt.Errorf("submit: %w", err)
				return result
			}
			result.Submitted++
		case "word_cleared":
			if ev.PlayerID != sess.PlayerID {
				continue
			}
			if sent, ok := pending[ev.WordID]; ok {
				result.Latencies = append(result.Latencies, time.Since(sent))
				delete(pending, ev.WordID)
			}
			result.Cleared++
		case "game_over":
			result.Success = true
			return result
		}
	}
}

func createPractice(baseURL, difficulty string, botID int) (*sessionResponse, error) {
	body, _ := json.Marshal(map[string]string{
		"name":       fmt.Sprintf("bot_%d", botID),
		"difficulty": difficulty,
	})

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(baseURL+"/matches/practice", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create practice: status %d", resp.StatusCode)
	}
	var sess sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func printResults(result LoadTestResult) {
	pct := func(n int64) float64 {
		if result.TotalBots == 0 {
			return 0
		}
		return float64(n) / float64(result.TotalBots) * 100
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total Bots:            %d\n", result.TotalBots)
	fmt.Printf("Successful Bots:       %d (%.2f%%)\n", result.SuccessfulBots, pct(result.SuccessfulBots))
	fmt.Printf("Failed Bots:           %d (%.2f%%)\n", result.FailedBots, pct(result.FailedBots))
	fmt.Printf("Words Submitted:       %d\n", result.WordsSubmitted)
	fmt.Printf("Words Cleared:         %d\n", result.WordsCleared)
	fmt.Printf("Total Duration:        %v\n", result.TotalDuration)
	fmt.Printf("Submits Per Second:    %.2f\n", result.SubmitsPerSecond)
	fmt.Printf("Average Clear Latency: %v\n", result.AverageClearLatency)
	fmt.Printf("Min Clear Latency:     %v\n", result.MinClearLatency)
	fmt.Printf("Max Clear Latency:     %v\n", result.MaxClearLatency)
	fmt.Println(strings.Repeat("=", 60))
}
