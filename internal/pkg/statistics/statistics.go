package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
)

const (
	CacheKeyDashboard = "statistics:admin:dashboard"
	CacheExpiration   = 60 * time.Second
	recentLimit       = 5
)

type Totals struct {
	TotalUsers         int64 `json:"totalUsers"`
	TotalScripts       int64 `json:"totalScripts"`
	TotalSubscriptions int64 `json:"totalSubscriptions"`
	TotalScriptSales   int64 `json:"totalScriptSales"`
}

type RecentUser struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type OrderBuyer struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
}

type OrderScript struct {
	Title string `json:"title"`
}

type RecentOrder struct {
	ID        uint         `json:"id"`
	Amount    float64      `json:"amount"`
	Currency  string       `json:"currency"`
	PlanType  string       `json:"planType"`
	CreatedAt time.Time    `json:"createdAt"`
	User      *OrderBuyer  `json:"user"`
	Script    *OrderScript `json:"script"`
}

// Dashboard is the admin overview payload.
type Dashboard struct {
	Stats        Totals                   `json:"stats"`
	RecentUsers  []RecentUser             `json:"recentUsers"`
	RecentOrders []RecentOrder            `json:"recentOrders"`
	ScriptSales  []repository.ScriptSales `json:"scriptSales"`
}

// Service computes the dashboard, caching it in Redis when a client is set.
type Service struct {
	repos *repository.Repositories
	rdb   *redis.Client
	ttl   time.Duration
}

func NewService(repos *repository.Repositories, rdb *redis.Client) *Service {
	return &Service{repos: repos, rdb: rdb, ttl: CacheExpiration}
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if d := s.cached(ctx); d != nil {
		return d, nil
	}

	d, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(d); err == nil {
			if err := s.rdb.Set(ctx, CacheKeyDashboard, data, s.ttl).Err(); err != nil {
				log.Warnf("[Statistics] Failed to cache dashboard: %v", err)
			}
		}
	}
	return d, nil
}

// Invalidate drops the cached dashboard.
func (s *Service) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, CacheKeyDashboard).Err(); err != nil {
		log.Warnf("[Statistics] Failed to invalidate dashboard cache: %v", err)
	}
}

func (s *Service) cached(ctx context.Context) *Dashboard {
	if s.rdb == nil {
		return nil
	}
	data, err := s.rdb.Get(ctx, CacheKeyDashboard).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[Statistics] Cache read failed: %v", err)
		}
		return nil
	}
	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil
	}
	return &d
}

func (s *Service) compute(ctx context.Context) (*Dashboard, error) {
	var (
		d      Dashboard
		users  []models.User
		orders []models.Order
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) { d.Stats.TotalUsers, err = s.repos.User.Count(); return })
	g.Go(func() (err error) { d.Stats.TotalScripts, err = s.repos.Script.Count(); return })
	g.Go(func() (err error) { d.Stats.TotalSubscriptions, err = s.repos.Subscription.CountActive(); return })
	g.Go(func() (err error) { d.Stats.TotalScriptSales, err = s.repos.Order.CountCompletedScriptSales(); return })
	g.Go(func() (err error) { users, err = s.repos.User.Recent(recentLimit); return })
	g.Go(func() (err error) { orders, err = s.repos.Order.RecentCompleted(recentLimit); return })
	g.Go(func() (err error) { d.ScriptSales, err = s.repos.Order.SalesPerScript(); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.RecentUsers = make([]RecentUser, 0, len(users))
	for _, u := range users {
		d.RecentUsers = append(d.RecentUsers, RecentUser{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}

	d.RecentOrders = make([]RecentOrder, 0, len(orders))
	for _, o := range orders {
		ro := RecentOrder{ID: o.ID, Amount: o.Amount, Currency: o.Currency, PlanType: o.PlanType, CreatedAt: o.CreatedAt}
		if o.User != nil {
			ro.User = &OrderBuyer{Email: o.User.Email, FirstName: o.User.FirstName}
		}
		if o.Script != nil {
			ro.Script = &OrderScript{Title: o.Script.Title}
		}
		d.RecentOrders = append(d.RecentOrders, ro)
	}
	if d.ScriptSales == nil {
		d.ScriptSales = []repository.ScriptSales{}
	}
	return &d, nil
}
