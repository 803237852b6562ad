package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type CacheTestResult struct {
	Endpoint     string        `json:"endpoint"`
	CacheStatus  string        `json:"cache_status"`
	ResponseTime time.Duration `json:"response_time"`
	DataSize     int           `json:"data_size"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
}

type CacheTestSuite struct {
	BaseURL string
	Results []CacheTestResult
}

func main() {
	suite := &CacheTestSuite{
		BaseURL: "http://localhost:8080/api/v1",
		Results: []CacheTestResult{},
	}

	fmt.Println("🧪 Starting Phase 2 Cache Testing...")
	fmt.Println("===================================")

	// Test Redis connection
	if err := testRedisConnection(); err != nil {
		log.Fatalf("❌ Redis connection failed: %v", err)
	}
	fmt.Println("✅ Redis connection: OK")

	// Reads that go through a cache layer: event listing (no cache, used as
	// a baseline) and the seat map, which is backed by seats.MapCache.
	testCases := []struct {
		name     string
		endpoint string
		method   string
	}{
		{"Event List Page 1", "/events?offset=0&limit=10", "GET"},
		{"Upcoming Events", "/events/upcoming?limit=5", "GET"},

		// Seat map reads hit seats.MapCache before falling back to Postgres.
		{"Seat Map - Event 1", "/events/event-uuid-1/seats", "GET"},
		{"Seat Map - Event 2", "/events/event-uuid-2/seats", "GET"},

		{"Event Detail", "/events/event-uuid-1", "GET"},
		{"Event Detail 2", "/events/event-uuid-2", "GET"},
	}

	for _, tc := range testCases {
		fmt.Printf("\n🔍 Testing: %s\n", tc.name)
		
		// First request (cache miss)
		result1 := suite.testEndpoint(tc.endpoint, "MISS", tc.method)
		suite.Results = append(suite.Results, result1)
		
		// Second request (should be cache hit)
		time.Sleep(100 * time.Millisecond)
		result2 := suite.testEndpoint(tc.endpoint, "HIT", tc.method)
		suite.Results = append(suite.Results, result2)

		// Performance comparison
		if result1.Success && result2.Success {
			improvement := float64(result1.ResponseTime-result2.ResponseTime) / float64(result1.ResponseTime) * 100
			fmt.Printf("   📈 Performance improvement: %.1f%% (%v -> %v)\n", 
				improvement, result1.ResponseTime, result2.ResponseTime)
		}
	}

	// Generate summary report
	suite.generateReport()
	
	fmt.Println("\n🎉 Phase 2 Cache Testing Complete!")
}

func testRedisConnection() error {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	return err
}

func (s *CacheTestSuite) testEndpoint(endpoint, expectedCacheStatus, method string) CacheTestResult {
	url := s.BaseURL + endpoint
	
	start := time.Now()
	
	// Make HTTP request
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return CacheTestResult{
			Endpoint: endpoint,
			CacheStatus: "ERROR", 
			Success: false,
			Error: err.Error(),
		}
	}

	// Add admin auth headers for admin endpoints
	if strings.Contains(endpoint, "/admin/") {
		req.Header.Set("Authorization", "Bearer test-admin-token")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return CacheTestResult{
			Endpoint: endpoint,
			CacheStatus: "ERROR",
			ResponseTime: time.Since(start),
			Success: false,
			Error: err.Error(),
		}
	}
	defer resp.Body.Close()

	responseTime := time.Since(start)

	// Read response body
	body := make([]byte, 0)
	if resp.Body != nil {
		buffer := make([]byte, 1024)
		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				body = append(body, buffer[:n]...)
			}
			if err != nil {
				break
			}
		}
	}

	// Determine cache status based on response time patterns
	actualCacheStatus := "UNKNOWN"
	if expectedCacheStatus == "MISS" {
		actualCacheStatus = "MISS"
	} else if expectedCacheStatus == "HIT" {
		// Cache hits should be significantly faster
		if responseTime < 50*time.Millisecond {
			actualCacheStatus = "HIT"
		} else {
			actualCacheStatus = "MISS"
		}
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	
	result := CacheTestResult{
		Endpoint:    endpoint,
		CacheStatus: actualCacheStatus,
		ResponseTime: responseTime,
		DataSize:    len(body),
		Success:     success,
	}

	if !success {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	// Print result
	statusIcon := "✅"
	if !success {
		statusIcon = "❌"
	}
	
	cacheIcon := "🔥" // cache hit
	if actualCacheStatus == "MISS" {
		cacheIcon = "💾" // cache miss
	} else if actualCacheStatus == "UNKNOWN" {
		cacheIcon = "❓"
	}

	fmt.Printf("   %s %s [%s] %v (%d bytes)\n", 
		statusIcon, cacheIcon, actualCacheStatus, responseTime, len(body))

	return result
}

func (s *CacheTestSuite) generateReport() {
	fmt.Println("\n📊 CACHE PERFORMANCE REPORT")
	fmt.Println("==========================")

	totalTests := len(s.Results)
	successfulTests := 0
	cacheHits := 0
	cacheMisses := 0
	totalResponseTime := time.Duration(0)
	cacheHitTime := time.Duration(0)
	cacheMissTime := time.Duration(0)

	for _, result := range s.Results {
		if result.Success {
			successfulTests++
		}
		
		totalResponseTime += result.ResponseTime
		
		switch result.CacheStatus {
		case "HIT":
			cacheHits++
			cacheHitTime += result.ResponseTime
		case "MISS":
			cacheMisses++
			cacheMissTime += result.ResponseTime
		}
	}

	fmt.Printf("Total Tests: %d\n", totalTests)
	fmt.Printf("Successful: %d (%.1f%%)\n", successfulTests, float64(successfulTests)/float64(totalTests)*100)
	fmt.Printf("Cache Hits: %d\n", cacheHits) 
	fmt.Printf("Cache Misses: %d\n", cacheMisses)

	if cacheHits > 0 {
		avgHitTime := cacheHitTime / time.Duration(cacheHits)
		fmt.Printf("Average Cache Hit Time: %v\n", avgHitTime)
	}

	if cacheMisses > 0 {
		avgMissTime := cacheMissTime / time.Duration(cacheMisses)
		fmt.Printf("Average Cache Miss Time: %v\n", avgMissTime)
	}

	if cacheHits > 0 && cacheMisses > 0 {
		avgHitTime := cacheHitTime / time.Duration(cacheHits)
		avgMissTime := cacheMissTime / time.Duration(cacheMisses)
		improvement := float64(avgMissTime-avgHitTime) / float64(avgMissTime) * 100
		fmt.Printf("Overall Cache Performance Improvement: %.1f%%\n", improvement)
	}

	// Save detailed results
	reportData, _ := json.MarshalIndent(map[string]interface{}{
		"summary": map[string]interface{}{
			"total_tests":      totalTests,
			"successful_tests": successfulTests,
			"cache_hits":       cacheHits,
			"cache_misses":     cacheMisses,
		},
		"results": s.Results,
	}, "", "  ")

	if err := os.WriteFile("cache_test_results.json", reportData, 0644); err != nil {
		fmt.Printf("\n❌ Failed to save detailed results: %v\n", err)
		return
	}
	fmt.Println("\n💾 Detailed results saved to cache_test_results.json")
}
