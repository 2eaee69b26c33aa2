package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradsys/lobcore/internal/admission"
	order_matching "github.com/tradsys/lobcore/internal/core/matching"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
	"github.com/tradsys/lobcore/internal/db/repository"
	"github.com/tradsys/lobcore/internal/eventsourcing"
	"github.com/tradsys/lobcore/internal/execution"
	"github.com/ulule/limiter/v3"
)

// BenchmarkSuite drives the matching engine and its surrounding layers
// at the throughput levels spec.md's performance section cares about,
// without needing a live database or network transport.
type BenchmarkSuite struct {
	logger *zap.Logger
	ctx    context.Context
}

func NewBenchmarkSuite(logger *zap.Logger) *BenchmarkSuite {
	return &BenchmarkSuite{
		logger: logger,
		ctx:    context.Background(),
	}
}

// BenchmarkResult mirrors a single runBenchmark/runConcurrentBenchmark
// measurement.
type BenchmarkResult struct {
	Name           string        `json:"name"`
	Operations     int64         `json:"operations"`
	Duration       time.Duration `json:"duration"`
	OpsPerSecond   float64       `json:"ops_per_second"`
	AvgLatency     time.Duration `json:"avg_latency"`
	MinLatency     time.Duration `json:"min_latency"`
	MaxLatency     time.Duration `json:"max_latency"`
	P95Latency     time.Duration `json:"p95_latency"`
	P99Latency     time.Duration `json:"p99_latency"`
	MemoryUsage    int64         `json:"memory_usage"`
	AllocationsOps int64         `json:"allocations_ops"`
}

func (bs *BenchmarkSuite) RunAllBenchmarks() ([]*BenchmarkResult, error) {
	var results []*BenchmarkResult

	bs.logger.Info("starting matching engine performance benchmarks")

	engineResults, err := bs.benchmarkEngine()
	if err != nil {
		bs.logger.Error("engine benchmark failed", zap.Error(err))
	} else {
		results = append(results, engineResults...)
	}

	executorResults, err := bs.benchmarkExecutor()
	if err != nil {
		bs.logger.Error("executor benchmark failed", zap.Error(err))
	} else {
		results = append(results, executorResults...)
	}

	concurrentResults, err := bs.benchmarkConcurrentSubmission()
	if err != nil {
		bs.logger.Error("concurrent submission benchmark failed", zap.Error(err))
	} else {
		results = append(results, concurrentResults...)
	}

	return results, nil
}

const benchExponent = -2

func benchPrice(v int64) fixedpoint.Value { return fixedpoint.MustNew(v, benchExponent) }

// benchmarkEngine measures Engine.SubmitLimit in isolation: resting
// orders that never cross, and orders that cross one resting order.
func (bs *BenchmarkSuite) benchmarkEngine() ([]*BenchmarkResult, error) {
	var results []*BenchmarkResult
	var tick uint64
	clock := func() uint64 { tick++; return tick }

	restingEngine := order_matching.NewEngine("BENCH-USD", benchExponent, 1<<20, 1<<16, clock, bs.logger)
	traderID := uint64(1)
	result := bs.runBenchmark("Engine.SubmitLimit (non-crossing)", func() {
		traderID++
		_, _ = restingEngine.SubmitLimit(order_matching.Buy, benchPrice(int64(traderID%1000)+1), benchPrice(100), traderID)
	}, 100000)
	results = append(results, result)

	crossEngine := order_matching.NewEngine("BENCH-USD", benchExponent, 1<<20, 1<<16, clock, bs.logger)
	result = bs.runBenchmark("Engine.SubmitLimit (crossing)", func() {
		traderID++
		_, _ = crossEngine.SubmitLimit(order_matching.Sell, benchPrice(1000000), benchPrice(100), traderID)
		traderID++
		_, _ = crossEngine.SubmitLimit(order_matching.Buy, benchPrice(1000000), benchPrice(100), traderID)
	}, 50000)
	results = append(results, result)

	result = bs.runBenchmark("Engine.BestBid/BestAsk", func() {
		_, _ = restingEngine.BestBid()
		_, _ = restingEngine.BestAsk()
	}, 200000)
	results = append(results, result)

	return results, nil
}

// benchmarkExecutor measures the full admission -> matching -> event
// persistence path against an in-memory repository, the closest this
// harness can get to production shape without a live database.
func (bs *BenchmarkSuite) benchmarkExecutor() ([]*BenchmarkResult, error) {
	var results []*BenchmarkResult

	executor := bs.newBenchExecutor(1 << 20)
	var traderID uint64

	result := bs.runBenchmark("Executor.SubmitLimit (end-to-end)", func() {
		traderID++
		_, _ = executor.SubmitLimit(bs.ctx, fmt.Sprintf("trader-%d", traderID), order_matching.Buy, benchPrice(int64(traderID%1000)+1), benchPrice(100), traderID)
	}, 20000)
	results = append(results, result)

	return results, nil
}

// benchmarkConcurrentSubmission measures SymbolRouter throughput when
// many goroutines submit against the same symbol concurrently; the
// router serializes them onto a single-slot pool, so this mainly
// reports queueing overhead rather than parallel speedup.
func (bs *BenchmarkSuite) benchmarkConcurrentSubmission() ([]*BenchmarkResult, error) {
	var results []*BenchmarkResult

	executor := bs.newBenchExecutor(1 << 20)
	var traderID uint64 = 1000000

	result := bs.runConcurrentBenchmark("Executor.SubmitLimit (concurrent, single symbol)", func() {
		id := nextTraderID(&traderID)
		_, _ = executor.SubmitLimit(bs.ctx, fmt.Sprintf("trader-%d", id), order_matching.Buy, benchPrice(int64(id%1000)+1), benchPrice(100), id)
	}, 2000, 8)
	results = append(results, result)

	return results, nil
}

func nextTraderID(counter *uint64) uint64 {
	*counter++
	return *counter
}

func (bs *BenchmarkSuite) newBenchExecutor(arenaSize int) *execution.Executor {
	var tick uint64
	clock := func() uint64 { tick++; return tick }

	engine := order_matching.NewEngine("BENCH-USD", benchExponent, arenaSize, 1<<16, clock, bs.logger)
	router := order_matching.NewSymbolRouter(bs.logger)
	if err := router.Register("BENCH-USD", engine); err != nil {
		bs.logger.Fatal("registering benchmark engine", zap.Error(err))
	}

	gate := admission.New(limiter.Rate{Period: time.Second, Limit: 1 << 30}, bs.logger)

	registry := eventsourcing.NewRegistry()
	registry.Register(eventsourcing.OrderEntityType, eventsourcing.OrderFromCreatedEvent)
	registry.Register(eventsourcing.TradeEntityType, eventsourcing.TradeFromCreatedEvent)
	registry.Register(eventsourcing.PricePointEntityType, eventsourcing.PricePointFromCreatedEvent)
	repo := repository.NewInMemoryRepository(registry)

	return execution.New("BENCH-USD", router, gate, repo, bs.logger)
}

// runBenchmark runs a single benchmark.
func (bs *BenchmarkSuite) runBenchmark(name string, operation func(), iterations int) *BenchmarkResult {
	for i := 0; i < 100; i++ {
		operation()
	}

	runtime.GC()

	var memBefore, memAfter runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	latencies := make([]time.Duration, iterations)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		opStart := time.Now()
		operation()
		latencies[i] = time.Since(opStart)
	}
	duration := time.Since(start)

	runtime.ReadMemStats(&memAfter)

	opsPerSecond := float64(iterations) / duration.Seconds()
	avgLatency := duration / time.Duration(iterations)

	sortLatencies(latencies)
	minLatency := latencies[0]
	maxLatency := latencies[len(latencies)-1]
	p95Latency := latencies[int(float64(len(latencies))*0.95)]
	p99Latency := latencies[int(float64(len(latencies))*0.99)]

	memoryUsage := int64(memAfter.Alloc - memBefore.Alloc)
	allocationsOps := int64(memAfter.Mallocs - memBefore.Mallocs)

	result := &BenchmarkResult{
		Name:           name,
		Operations:     int64(iterations),
		Duration:       duration,
		OpsPerSecond:   opsPerSecond,
		AvgLatency:     avgLatency,
		MinLatency:     minLatency,
		MaxLatency:     maxLatency,
		P95Latency:     p95Latency,
		P99Latency:     p99Latency,
		MemoryUsage:    memoryUsage,
		AllocationsOps: allocationsOps,
	}

	bs.logger.Info("benchmark completed",
		zap.String("name", name),
		zap.Float64("ops_per_second", opsPerSecond),
		zap.Duration("avg_latency", avgLatency),
		zap.Duration("p95_latency", p95Latency),
	)

	return result
}

// runConcurrentBenchmark runs a benchmark across goroutines concurrent submitters.
func (bs *BenchmarkSuite) runConcurrentBenchmark(name string, operation func(), iterations int, goroutines int) *BenchmarkResult {
	for i := 0; i < 100; i++ {
		operation()
	}

	runtime.GC()

	var memBefore, memAfter runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	latencies := make([]time.Duration, iterations*goroutines)
	latencyIndex := 0
	var latencyMutex sync.Mutex

	var wg sync.WaitGroup
	start := time.Now()

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				opStart := time.Now()
				operation()
				latency := time.Since(opStart)

				latencyMutex.Lock()
				latencies[latencyIndex] = latency
				latencyIndex++
				latencyMutex.Unlock()
			}
		}()
	}

	wg.Wait()
	duration := time.Since(start)

	runtime.ReadMemStats(&memAfter)

	totalOps := iterations * goroutines
	opsPerSecond := float64(totalOps) / duration.Seconds()
	avgLatency := duration / time.Duration(totalOps)

	sortLatencies(latencies)
	minLatency := latencies[0]
	maxLatency := latencies[len(latencies)-1]
	p95Latency := latencies[int(float64(len(latencies))*0.95)]
	p99Latency := latencies[int(float64(len(latencies))*0.99)]

	memoryUsage := int64(memAfter.Alloc - memBefore.Alloc)
	allocationsOps := int64(memAfter.Mallocs - memBefore.Mallocs)

	result := &BenchmarkResult{
		Name:           name,
		Operations:     int64(totalOps),
		Duration:       duration,
		OpsPerSecond:   opsPerSecond,
		AvgLatency:     avgLatency,
		MinLatency:     minLatency,
		MaxLatency:     maxLatency,
		P95Latency:     p95Latency,
		P99Latency:     p99Latency,
		MemoryUsage:    memoryUsage,
		AllocationsOps: allocationsOps,
	}

	bs.logger.Info("concurrent benchmark completed",
		zap.String("name", name),
		zap.Int("goroutines", goroutines),
		zap.Float64("ops_per_second", opsPerSecond),
		zap.Duration("avg_latency", avgLatency),
		zap.Duration("p95_latency", p95Latency),
	)

	return result
}

func sortLatencies(latencies []time.Duration) {
	n := len(latencies)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-i-1; j++ {
			if latencies[j] > latencies[j+1] {
				latencies[j], latencies[j+1] = latencies[j+1], latencies[j]
			}
		}
	}
}

func (bs *BenchmarkSuite) generateReport(results []*BenchmarkResult) string {
	report := "# lobcore matching engine performance baseline\n\n"
	report += fmt.Sprintf("**Generated**: %s\n", time.Now().Format(time.RFC3339))
	report += fmt.Sprintf("**Go Version**: %s\n", runtime.Version())
	report += fmt.Sprintf("**GOMAXPROCS**: %d\n\n", runtime.GOMAXPROCS(0))

	report += "## Summary\n\n"
	report += "| Component | Operations/sec | Avg Latency | P95 Latency | P99 Latency |\n"
	report += "|---|---|---|---|---|\n"

	for _, result := range results {
		report += fmt.Sprintf("| %s | %.0f | %v | %v | %v |\n",
			result.Name, result.OpsPerSecond, result.AvgLatency, result.P95Latency, result.P99Latency)
	}

	report += "\n## Detailed results\n\n"

	for _, result := range results {
		report += fmt.Sprintf("### %s\n\n", result.Name)
		report += fmt.Sprintf("- Total operations: %d\n", result.Operations)
		report += fmt.Sprintf("- Duration: %v\n", result.Duration)
		report += fmt.Sprintf("- Operations/sec: %.2f\n", result.OpsPerSecond)
		report += fmt.Sprintf("- Average latency: %v\n", result.AvgLatency)
		report += fmt.Sprintf("- Min latency: %v\n", result.MinLatency)
		report += fmt.Sprintf("- Max latency: %v\n", result.MaxLatency)
		report += fmt.Sprintf("- P95 latency: %v\n", result.P95Latency)
		report += fmt.Sprintf("- P99 latency: %v\n", result.P99Latency)
		report += fmt.Sprintf("- Memory usage: %d bytes\n", result.MemoryUsage)
		report += fmt.Sprintf("- Allocations: %d\n\n", result.AllocationsOps)
	}

	return report
}

func main() {
	var (
		output  = flag.String("output", "PERFORMANCE_BASELINE.md", "Output file for the report")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	var logger *zap.Logger
	var err error

	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	suite := NewBenchmarkSuite(logger)

	logger.Info("starting performance baseline benchmarks")

	results, err := suite.RunAllBenchmarks()
	if err != nil {
		logger.Fatal("benchmarks failed", zap.Error(err))
	}

	report := suite.generateReport(results)

	if err := os.WriteFile(*output, []byte(report), 0644); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}

	logger.Info("performance baseline complete",
		zap.String("report", *output),
		zap.Int("benchmarks", len(results)),
	)
}
