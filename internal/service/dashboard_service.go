package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/demandcast/backend-go/internal/aggregate"
	"github.com/demandcast/backend-go/internal/cache"
	"github.com/demandcast/backend-go/internal/config"
	"github.com/demandcast/backend-go/internal/domain"
	"github.com/demandcast/backend-go/internal/forecast"
	"github.com/demandcast/backend-go/internal/ingest"
	"github.com/demandcast/backend-go/internal/model"
	"github.com/demandcast/backend-go/internal/replenish"
	"github.com/demandcast/backend-go/internal/repository"
)

const (
	// moverCount is how many fast and slow sellers the dashboard surfaces.
	moverCount = 12

	// moverScoreWindow is the trailing window used to rank products, so
	// rankings reflect current velocity rather than lifetime totals.
	moverScoreWindow = 7

	// trendDays limits per-product trend payloads.
	trendDays = 30

	// syntheticStockDivisor and syntheticStockBase derive a stand-in stock
	// level for datasets without an inventory column: half the units ever
	// sold plus a flat floor.
	syntheticStockDivisor = 2
	syntheticStockBase    = 500
)

// DashboardService computes dashboards, replenishment reports and demand
// forecasts for uploaded datasets.
type DashboardService struct {
	cfg    *config.Config
	cache  cache.DashboardCache
	models *model.Store
	engine *replenish.Engine
	repo   repository.SalesRepository

	overall forecast.Forecaster
	mover   forecast.Forecaster
	now     func() time.Time
}

// NewDashboardService wires the service. repo may be nil when the database
// is disabled; datasets then live on the filesystem only.
func NewDashboardService(cfg *config.Config, c cache.DashboardCache, models *model.Store, repo repository.SalesRepository) *DashboardService {
	return &DashboardService{
		cfg:     cfg,
		cache:   c,
		models:  models,
		engine:  replenish.NewEngine(),
		repo:    repo,
		overall: forecast.WithFallback(forecast.NewSeasonal(), forecast.NewBaseline()),
		mover:   forecast.NewRecentBaseline(moverScoreWindow),
		now:     time.Now,
	}
}

// SaveUpload persists an uploaded dataset file, validates it and registers
// it. The returned dataset row count reflects rows that survived cleaning.
func (s *DashboardService) SaveUpload(ctx context.Context, fileName string, r io.Reader) (*repository.Dataset, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrMissingRequiredField)
	}

	path := filepath.Join(s.cfg.App.UploadDir, fileName)
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", fileName, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to write upload %s: %w", fileName, err)
	}
	out.Close()

	records, err := ingest.LoadFile(path)
	if err != nil {
		// An upload that fails validation must not linger as a loadable
		// dataset.
		_ = os.Remove(path)
		return nil, err
	}
	if len(records) == 0 {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %s has no usable rows", domain.ErrNoData, fileName)
	}

	if err := s.cache.InvalidateFile(ctx, fileName); err != nil {
		log.Warn().Err(err).Str("file", fileName).Msg("failed to invalidate dashboard cache")
	}

	if s.repo != nil {
		return s.repo.RegisterDataset(ctx, fileName, repository.SourceUpload, records)
	}
	return &repository.Dataset{FileName: fileName, Source: repository.SourceUpload, RowCount: len(records)}, nil
}

// Dashboard builds the full dashboard payload for one dataset, served from
// cache when possible.
func (s *DashboardService) Dashboard(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardData, error) {
	if cached, ok, err := s.cache.Get(ctx, query); err != nil {
		log.Warn().Err(err).Str("file", query.FileName).Msg("dashboard cache read failed")
	} else if ok {
		return cached, nil
	}

	records, err := s.loadRecords(ctx, query.FileName)
	if err != nil {
		return nil, err
	}

	agg := aggregate.Daily(records)
	if len(agg.Overall) == 0 {
		return nil, fmt.Errorf("%w: %s aggregates to an empty series", domain.ErrNoData, query.FileName)
	}

	points, err := s.overall.Forecast(agg.Overall, query.ForecastDays)
	if err != nil {
		return nil, err
	}

	stockTotal := s.stockTotal(agg)

	rec := s.engine.Recommend(agg.Overall, stockTotal, replenish.Params{
		Policy:       replenish.PolicySimplified,
		LeadTimeDays: query.LeadTimeDays,
		BufferDays:   query.BufferDays,
		ForecastDays: query.ForecastDays,
	})

	fast, slow, err := s.rankMovers(ctx, agg, query.ForecastDays)
	if err != nil {
		return nil, err
	}

	data := &domain.DashboardData{
		FileName:          query.FileName,
		SalesTrend:        toTrendPoints(agg.Overall),
		Forecast:          toForecastEntries(points),
		FastSelling:       fast,
		SlowSelling:       slow,
		TotalUnitsSold:    agg.TotalUnitsSold,
		CurrentStockTotal: stockTotal,
		DaysToStockout:    rec.DaysOfStock,
		StockoutDate:      stockoutDate(s.now(), rec.DaysOfStock),
		ReorderQty:        rec.ReorderQty,
		ReorderPoint:      rec.ReorderPoint,
		StockStatus:       rec.StockStatus,
	}

	if err := s.cache.Set(ctx, query, data); err != nil {
		log.Warn().Err(err).Str("file", query.FileName).Msg("dashboard cache write failed")
	}

	return data, nil
}

// Replenishment computes the dataset-wide and per-product recommendations
// under the requested policy.
func (s *DashboardService) Replenishment(ctx context.Context, fileName string, params replenish.Params) (*domain.ReplenishmentReport, error) {
	records, err := s.loadRecords(ctx, fileName)
	if err != nil {
		return nil, err
	}

	agg := aggregate.Daily(records)
	if len(agg.Overall) == 0 {
		return nil, fmt.Errorf("%w: %s aggregates to an empty series", domain.ErrNoData, fileName)
	}

	s.fillCostDefaults(&params)

	report := &domain.ReplenishmentReport{
		FileName: fileName,
		Policy:   string(params.Policy),
		Overall:  s.engine.Recommend(agg.Overall, s.stockTotal(agg), params),
	}

	products := sortedProducts(agg)
	report.Products = make([]domain.ReplenishmentResult, len(products))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount())
	for i, product := range products {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			series := agg.PerProduct[product]
			result := s.engine.Recommend(series, s.productStock(agg, product), params)
			result.ProductID = product
			report.Products[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(report.Products, func(i, j int) bool {
		return report.Products[i].ReorderQty > report.Products[j].ReorderQty
	})

	return report, nil
}

// Train fits a fresh demand model for one (store, product) key of a dataset.
func (s *DashboardService) Train(ctx context.Context, fileName, storeID, productID string) (*model.TrainedModel, error) {
	storeID, records, err := s.keyRecords(ctx, fileName, storeID, productID)
	if err != nil {
		return nil, err
	}
	return s.models.Train(ctx, storeID, productID, records)
}

// ModelForecast predicts the next horizon days for one (store, product) key,
// training lazily when no model is cached yet.
func (s *DashboardService) ModelForecast(ctx context.Context, fileName, storeID, productID string, horizon int) ([]domain.ForecastEntry, error) {
	if horizon <= 0 {
		horizon = s.cfg.Forecast.HorizonDays
	}

	storeID, records, err := s.keyRecords(ctx, fileName, storeID, productID)
	if err != nil {
		return nil, err
	}

	points, err := s.models.Predict(ctx, storeID, productID, records, horizon)
	if err != nil {
		return nil, err
	}
	return toForecastEntries(points), nil
}

// Datasets lists registered datasets when the database is enabled, falling
// back to a directory listing otherwise.
func (s *DashboardService) Datasets(ctx context.Context, limit int) ([]repository.Dataset, error) {
	if s.repo != nil {
		return s.repo.ListDatasets(ctx, limit)
	}

	entries, err := os.ReadDir(s.cfg.App.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload dir: %w", err)
	}

	var datasets []repository.Dataset
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		datasets = append(datasets, repository.Dataset{
			FileName: entry.Name(),
			Source:   repository.SourceUpload,
		})
	}
	return datasets, nil
}

func (s *DashboardService) loadRecords(ctx context.Context, fileName string) ([]domain.SalesRecord, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrMissingRequiredField)
	}

	path := filepath.Join(s.cfg.App.UploadDir, fileName)
	if _, err := os.Stat(path); err == nil {
		return ingest.LoadFile(path)
	}

	if s.repo != nil {
		return s.repo.RecordsByFile(ctx, fileName)
	}
	return nil, fmt.Errorf("%w: dataset %s not found", domain.ErrNoData, fileName)
}

// keyRecords resolves a blank store to the single-store default and returns
// the resolved store alongside the key's history.
func (s *DashboardService) keyRecords(ctx context.Context, fileName, storeID, productID string) (string, []domain.SalesRecord, error) {
	if strings.TrimSpace(productID) == "" {
		return "", nil, fmt.Errorf("%w: product_id is required", domain.ErrMissingRequiredField)
	}
	if strings.TrimSpace(storeID) == "" {
		storeID = domain.DefaultStoreID
	}

	all, err := s.loadRecords(ctx, fileName)
	if err != nil {
		return "", nil, err
	}

	records := aggregate.ForKey(all, storeID, productID)
	if len(records) == 0 {
		return "", nil, fmt.Errorf("%w: no history for store %s product %s", domain.ErrNoData, storeID, productID)
	}
	return storeID, records, nil
}

// rankMovers scores every product by trailing-window mean, then builds the
// top and bottom card payloads concurrently. Card forecasts span the
// requested horizon.
func (s *DashboardService) rankMovers(ctx context.Context, agg *aggregate.Result, forecastDays int) (fast, slow []domain.ProductRecord, err error) {
	products := sortedProducts(agg)
	sort.SliceStable(products, func(i, j int) bool {
		return agg.PerProduct[products[i]].TailMean(moverScoreWindow) > agg.PerProduct[products[j]].TailMean(moverScoreWindow)
	})

	n := len(products)
	fastCount := minInt(moverCount, n)
	slowCount := minInt(moverCount, n)

	fast = make([]domain.ProductRecord, fastCount)
	slow = make([]domain.ProductRecord, slowCount)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount())

	build := func(product string, dst []domain.ProductRecord, idx int) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := s.productRecord(agg, product, forecastDays)
			if err != nil {
				return err
			}
			mu.Lock()
			dst[idx] = rec
			mu.Unlock()
			return nil
		})
	}

	for i := 0; i < fastCount; i++ {
		build(products[i], fast, i)
	}
	for i := 0; i < slowCount; i++ {
		build(products[n-1-i], slow, i)
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return fast, slow, nil
}

func (s *DashboardService) productRecord(agg *aggregate.Result, product string, forecastDays int) (domain.ProductRecord, error) {
	series := agg.PerProduct[product]

	points, err := s.mover.Forecast(series, forecastDays)
	if err != nil {
		return domain.ProductRecord{}, err
	}

	return domain.ProductRecord{
		Product:      product,
		UnitsSold:    series.Sum(),
		Trend:        toTrendPoints(series.Tail(trendDays)),
		Forecast:     toForecastEntries(points),
		CurrentStock: s.productStock(agg, product),
	}, nil
}

// stockTotal returns the dataset-wide stock level, synthesized when the
// source file carried no inventory column.
func (s *DashboardService) stockTotal(agg *aggregate.Result) float64 {
	if agg.HasStock() {
		return agg.StockTotal()
	}
	return agg.TotalUnitsSold/syntheticStockDivisor + syntheticStockBase
}

func (s *DashboardService) productStock(agg *aggregate.Result, product string) float64 {
	if agg.HasStock() {
		return agg.ProductStock[product]
	}
	return agg.PerProduct[product].Sum()/syntheticStockDivisor + syntheticStockBase
}

func (s *DashboardService) fillCostDefaults(p *replenish.Params) {
	if p.ServiceLevelZ <= 0 {
		p.ServiceLevelZ = s.cfg.Forecast.ServiceLevelZ
	}
	if p.OrderingCost <= 0 {
		p.OrderingCost = s.cfg.Forecast.OrderingCost
	}
	if p.HoldingCostPerUnit <= 0 {
		p.HoldingCostPerUnit = s.cfg.Forecast.HoldingCostPerUnit
	}
	if p.AnnualizationFactor <= 0 {
		p.AnnualizationFactor = s.cfg.Forecast.AnnualizationFactor
	}
}

func (s *DashboardService) workerCount() int {
	if s.cfg.Forecast.WorkerCount > 0 {
		return s.cfg.Forecast.WorkerCount
	}
	return 4
}

func sortedProducts(agg *aggregate.Result) []string {
	products := make([]string, 0, len(agg.PerProduct))
	for product := range agg.PerProduct {
		products = append(products, product)
	}
	sort.Strings(products)
	return products
}

func toTrendPoints(series domain.DailySeries) []domain.TrendPoint {
	out := make([]domain.TrendPoint, 0, len(series))
	for _, p := range series {
		out = append(out, domain.TrendPoint{
			Date:      p.Date.Format(domain.DateFormat),
			UnitsSold: p.UnitsSold,
		})
	}
	return out
}

func toForecastEntries(points []domain.ForecastPoint) []domain.ForecastEntry {
	out := make([]domain.ForecastEntry, 0, len(points))
	for _, p := range points {
		out = append(out, domain.ForecastEntry{
			Date: p.Date.Format(domain.DateFormat),
			YHat: p.YHat,
		})
	}
	return out
}

// stockoutDate projects the calendar day stock runs out, counted from the
// current processing day. "N/A" marks unbounded cover.
func stockoutDate(now time.Time, daysOfStock *float64) string {
	if daysOfStock == nil {
		return "N/A"
	}
	return now.AddDate(0, 0, int(math.Floor(*daysOfStock))).Format(domain.DateFormat)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
