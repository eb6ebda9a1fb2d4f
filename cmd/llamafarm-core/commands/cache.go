package commands

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var cacheAddr string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or evict entries from a running server's model cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the model cache's current occupancy",
	RunE:  runCacheStats,
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <key>",
	Short: "Evict a single model cache entry, unloading its backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheEvict,
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheAddr, "addr", "http://127.0.0.1:8080", "Base URL of a running llamafarm-core server")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
}

type cacheStats struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(cacheAddr + "/admin/cache/stats")
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var stats cacheStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("cached entries: %d\n", stats.Count)
	for _, key := range stats.Keys {
		fmt.Println("  " + key)
	}
	return nil
}

func runCacheEvict(cmd *cobra.Command, args []string) error {
	key := args[0]
	resp, err := http.Post(cacheAddr+"/admin/cache/evict/"+key, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	fmt.Printf("evicted %s\n", key)
	return nil
}
