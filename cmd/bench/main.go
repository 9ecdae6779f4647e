// Command bench runs a synthetic block workload against the cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/colstore/blockcache/allocator"
	"github.com/colstore/blockcache/cache"
	"github.com/colstore/blockcache/memtracker"
	pmet "github.com/colstore/blockcache/metrics/prom"
	"github.com/colstore/blockcache/policy/fifo"
)

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int64("cap", 256<<20, "cache capacity (bytes)")
		shards   = flag.Int("shards", 0, "number of shards (0=auto)")
		policy   = flag.String("policy", "lru", "eviction policy: lru | fifo")
		pooled   = flag.Bool("pooled", true, "use the pooled buffer allocator")

		workers   = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration  = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct   = flag.Int("reads", 80, "read percentage [0..100]")
		valueSize = flag.Int("value", 4096, "value size per entry (bytes)")

		keys  = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "blockcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build cache ----
	tracker := memtracker.New("bench")
	opt := cache.Options{
		Capacity:   *capacity,
		Shards:     *shards,
		Metrics:    metrics,
		MemTracker: tracker,
		Logger:     logger,
	}
	switch *policy {
	case "lru":
		// nil => LRU by default
	case "fifo":
		opt.Policy = fifo.New()
	default:
		log.Fatalf("unknown policy: %q (use lru or fifo)", *policy)
	}
	if *pooled {
		opt.Allocator = allocator.NewPool()
	}
	c := cache.New(opt)

	fill := func(k []byte, r *rand.Rand) bool {
		h, err := c.Allocate(k, *valueSize, cache.AutomaticCharge)
		if err != nil {
			return false
		}
		r.Read(h.MutableValue())
		c.Insert(h, nil)
		h.Release()
		return true
	}

	// ---- Preload until roughly half the capacity is resident ----
	pre := rand.New(rand.NewSource(*seed))
	kb := make([]byte, 8)
	for i := 0; c.Usage() < *capacity/2 && i < *keys; i++ {
		binary.LittleEndian.PutUint64(kb, uint64(i))
		fill(kb, pre)
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)
			key := make([]byte, 8)

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				binary.LittleEndian.PutUint64(key, localZipf.Uint64())
				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if h := c.Lookup(key, cache.NoExpectInCache); h != nil {
						atomic.AddUint64(&hits, 1)
						h.Release()
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					fill(key, localR)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	st := c.Stats()
	fmt.Printf("policy=%s cap=%d shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policy, *capacity, *shards, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("usage=%d/%d bytes  entries=%d  evictions=%d  tracked=%d (peak %d)\n",
		st.Usage, c.Capacity(), st.Entries, st.Evictions,
		tracker.Consumption(), tracker.Peak())
}
