package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/cache"
	"github.com/vigilohq/vigilo/internal/pkg/database"
)

const (
	CacheKeyMonitorsTotal = "statistics:monitors:total"
	CacheKeyMonitorsDown  = "statistics:monitors:down"
	CacheKeyUsers         = "statistics:users:total"
	CacheExpiration       = 30 * time.Minute
)

// StatisticsData holds the fleet-wide counters shown on the landing page
// and the admin overview.
type StatisticsData struct {
	TotalMonitors int
	DownMonitors  int
	TotalUsers    int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cache is stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when it is stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Failed to update statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalMonitors int64
	if err := db.Model(&models.Monitor{}).Count(&totalMonitors).Error; err != nil {
		log.Printf("Error counting monitors: %v", err)
		return err
	}

	var downMonitors int64
	if err := db.Model(&models.Monitor{}).Where("status = ?", models.MonitorStatusDown).Count(&downMonitors).Error; err != nil {
		log.Printf("Error counting down monitors: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyMonitorsTotal, strconv.FormatInt(totalMonitors, 10), CacheExpiration); err != nil {
		log.Printf("Error caching monitor count: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyMonitorsDown, strconv.FormatInt(downMonitors, 10), CacheExpiration); err != nil {
		log.Printf("Error caching down monitor count: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching user count: %v", err)
		return err
	}

	return nil
}

// GetTotalMonitors returns the total monitor count from cache or database
func GetTotalMonitors() int {
	return cachedCount(CacheKeyMonitorsTotal, countMonitors)
}

// GetDownMonitors returns the down monitor count from cache or database
func GetDownMonitors() int {
	return cachedCount(CacheKeyMonitorsDown, countDownMonitors)
}

// GetTotalUsers returns the total user count from cache or database
func GetTotalUsers() int {
	return cachedCount(CacheKeyUsers, countUsers)
}

// GetStatisticsData returns all statistics as one structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalMonitors: GetTotalMonitors(),
		DownMonitors:  GetDownMonitors(),
		TotalUsers:    GetTotalUsers(),
	}
}

func cachedCount(key string, fallback func() (int64, error)) int {
	val, err := cache.Get(key)
	if err != nil {
		count, dbErr := fallback()
		if dbErr != nil {
			log.Printf("Error counting for %s: %v", key, dbErr)
			return 0
		}
		if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching %s: %v", key, err)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

func countMonitors() (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.Monitor{}).Count(&count).Error
	return count, err
}

func countDownMonitors() (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.Monitor{}).Where("status = ?", models.MonitorStatusDown).Count(&count).Error
	return count, err
}

func countUsers() (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.User{}).Count(&count).Error
	return count, err
}
