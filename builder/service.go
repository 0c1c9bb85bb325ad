package builder

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/flashbots/linea-sequencer/core/txpool"
	"github.com/flashbots/linea-sequencer/internal/ethapi"
	"github.com/flashbots/linea-sequencer/miner"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

const (
	_PathRPC    = "/"
	_PathStatus = "/status"
)

// Service exposes the bundle JSON-RPC API over HTTP.
type Service struct {
	srv       *http.Server
	rpcServer *rpc.Server
	pool      *txpool.LimitedBundlePool
	factory   *miner.SelectorFactory
}

type statusResponse struct {
	Bundles     int    `json:"bundles"`
	Weight      uint64 `json:"weight"`
	MaxWeight   uint64 `json:"maxWeight"`
	BuildingFor uint64 `json:"buildingFor,omitempty"`
}

func (s *Service) handleStatus(w http.ResponseWriter, req *http.Request) {
	status := statusResponse{
		Bundles:   s.pool.Len(),
		Weight:    s.pool.Weight(),
		MaxWeight: s.pool.MaxWeight(),
	}
	if pipeline := s.factory.Current(); pipeline != nil {
		status.BuildingFor = pipeline.BlockNumber()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Warn("Could not write status response", "err", err)
	}
}

func (s *Service) getRouter() http.Handler {
	router := mux.NewRouter()

	router.Handle(_PathRPC, s.rpcServer).Methods(http.MethodPost)
	router.HandleFunc(_PathStatus, s.handleStatus).Methods(http.MethodGet)

	loggedRouter := httplogger.LoggingMiddleware(router)
	return loggedRouter
}

func newLimiter(cfg *Config) *rate.Limiter {
	if cfg.BundleRateLimit == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.BundleRateLimit)), cfg.BundleRateBurst)
}

func NewService(cfg *Config, pool *txpool.LimitedBundlePool, factory *miner.SelectorFactory) (*Service, error) {
	rpcServer := rpc.NewServer()
	api := ethapi.NewBundleAPI(pool, factory, newLimiter(cfg))
	if err := rpcServer.RegisterName(ethapi.Namespace, api); err != nil {
		return nil, err
	}
	s := &Service{
		rpcServer: rpcServer,
		pool:      pool,
		factory:   factory,
	}
	s.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.getRouter(),
	}
	return s, nil
}

func (s *Service) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves requests until Stop is called.
func (s *Service) Start() error {
	log.Info("Service started", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) Stop() error {
	err := s.srv.Close()
	s.rpcServer.Stop()
	return err
}
