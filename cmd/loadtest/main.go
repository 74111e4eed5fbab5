// Command loadtest нагружает HTTP API корзины сценариями add/increment/decrement и печатает отчёт по задержкам.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	methodScenario  = "scenario"
	methodAdd       = "AddItem"
	methodIncrement = "Increment"
	methodDecrement = "Decrement"

	// statusTransportError фиксирует вызовы, не получившие HTTP-ответ.
	statusTransportError = "transport_error"
)

type loadMode string

const (
	modeAdd                loadMode = "add"
	modeAddIncrement       loadMode = "add-increment"
	modeAddIncrementRemove loadMode = "add-increment-remove"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	removeRate  int
	title       string
	price       float64
	productTag  string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

func (s *methodStats) report() methodReport {
	statuses := make(map[string]int64, len(s.statuses))
	for status, count := range s.statuses {
		statuses[status] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Statuses:  statuses,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// record учитывает вызов; status — HTTP-код строкой или statusTransportError.
func (c *collector) record(method string, latency time.Duration, status string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, found := c.methods[method]
	if !found {
		stats = &methodStats{statuses: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[status]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}
	return stats.report(), true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenarioStats := c.methods[methodScenario]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		result.Methods[name] = stats.report()
	}
	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "cart HTTP API base URL")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeAdd), "load mode: add | add-increment | add-increment-remove")
	flag.IntVar(&cfg.removeRate, "remove-rate", 0, "remove probability in percent for add-increment mode (0..100)")
	flag.StringVar(&cfg.title, "title", "Load product", "product title")
	flag.Float64Var(&cfg.price, "price", 10, "product price")
	flag.StringVar(&cfg.productTag, "product-tag", "load", "product id prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if parsed, parseErr := url.Parse(cfg.baseURL); parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return cfg, fmt.Errorf("url must be an absolute http(s) URL: %q", cfg.baseURL)
	}

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.price <= 0 || math.IsNaN(cfg.price) || math.IsInf(cfg.price, 0) {
		return cfg, errors.New("price must be a positive finite number")
	}
	if cfg.removeRate < 0 || cfg.removeRate > 100 {
		return cfg, errors.New("remove-rate must be between 0 and 100")
	}
	if strings.TrimSpace(cfg.title) == "" {
		return cfg, errors.New("title is required")
	}
	if strings.TrimSpace(cfg.productTag) == "" {
		return cfg, errors.New("product-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeAdd:
		return modeAdd, nil
	case modeAddIncrement:
		return modeAddIncrement, nil
	case modeAddIncrementRemove:
		return modeAddIncrementRemove, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &cartClient{
		baseURL: cfg.baseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.concurrency,
				MaxIdleConnsPerHost: cfg.concurrency,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: cfg.timeout,
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// addItemRequest повторяет JSON товара, который принимает POST /v1/cart/items.
type addItemRequest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// cartView — часть ответа API, нужная для проверки сценария.
type cartView struct {
	Products []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"products"`
	TotalItems int `json:"total_items"`
}

func (v cartView) quantityOf(id string) int {
	for _, item := range v.Products {
		if item.ID == id {
			return item.Quantity
		}
	}
	return 0
}

type cartClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// statusError — ответ API с неуспешным HTTP-кодом.
type statusError struct {
	method string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.method, e.code, e.body)
}

func (c *cartClient) do(method, path string, body any, col *collector, name string) (cartView, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return cartView{}, fmt.Errorf("encode %s request: %w", name, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return cartView{}, fmt.Errorf("build %s request: %w", name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		col.record(name, time.Since(start), statusTransportError, false)
		return cartView{}, err
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	ok := resp.StatusCode == http.StatusOK && readErr == nil
	col.record(name, time.Since(start), strconv.Itoa(resp.StatusCode), ok)
	if readErr != nil {
		return cartView{}, fmt.Errorf("read %s response: %w", name, readErr)
	}
	if resp.StatusCode != http.StatusOK {
		return cartView{}, &statusError{method: name, code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var view cartView
	if err := json.Unmarshal(raw, &view); err != nil {
		return cartView{}, fmt.Errorf("decode %s response: %w", name, err)
	}
	return view, nil
}

func (c *cartClient) addItem(product addItemRequest, col *collector) (cartView, error) {
	return c.do(http.MethodPost, "/v1/cart/items", product, col, methodAdd)
}

func (c *cartClient) increment(id string, col *collector) (cartView, error) {
	return c.do(http.MethodPost, "/v1/cart/items/"+url.PathEscape(id)+"/increment", nil, col, methodIncrement)
}

func (c *cartClient) decrement(id string, col *collector) (cartView, error) {
	return c.do(http.MethodPost, "/v1/cart/items/"+url.PathEscape(id)+"/decrement", nil, col, methodDecrement)
}

// runScenario добавляет уникальный товар и, в зависимости от режима, увеличивает
// и убирает его, сверяя количество в каждом ответе.
func runScenario(client *cartClient, cfg config, index int, runID string, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		status := strconv.Itoa(http.StatusOK)
		var se *statusError
		switch {
		case errors.As(err, &se):
			status = strconv.Itoa(se.code)
		case err != nil:
			status = statusTransportError
		}
		col.record(methodScenario, time.Since(scenarioStart), status, err == nil)
	}()

	id := fmt.Sprintf("%s-%s-%d", cfg.productTag, runID, index)
	view, err := client.addItem(addItemRequest{
		ID:       id,
		Title:    cfg.title,
		ImageURL: "https://example.com/" + id + ".png",
		Price:    cfg.price,
	}, col)
	if err != nil {
		return err
	}
	if qty := view.quantityOf(id); qty != 1 {
		return fmt.Errorf("after add expected quantity 1 for %s, got %d", id, qty)
	}

	if cfg.mode == modeAdd {
		return nil
	}

	view, err = client.increment(id, col)
	if err != nil {
		return err
	}
	if qty := view.quantityOf(id); qty != 2 {
		return fmt.Errorf("after increment expected quantity 2 for %s, got %d", id, qty)
	}

	if cfg.mode == modeAddIncrementRemove || (cfg.mode == modeAddIncrement && shouldRemoveScenario(index, cfg.removeRate)) {
		for range 2 {
			if view, err = client.decrement(id, col); err != nil {
				return err
			}
		}
		if qty := view.quantityOf(id); qty != 0 {
			return fmt.Errorf("after removal expected %s to be gone, got quantity %d", id, qty)
		}
	}

	return nil
}

func shouldRemoveScenario(index, removeRate int) bool {
	if removeRate <= 0 {
		return false
	}
	if removeRate >= 100 {
		return true
	}
	return index%100 < removeRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == methodScenario {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
