package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bolidosrifas/raffle/api"
	"github.com/bolidosrifas/raffle/config"
)

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails.
func Run(ctx context.Context, cfg *config.Config, tickets *api.TicketHandler, purchases *api.PurchaseHandler, admin *api.AdminHandler) error {
	router := gin.Default()

	root := router.Group("/api")
	tickets.Register(root.Group("/tickets"))
	purchases.Register(root.Group("/purchase"))
	admin.Register(root.Group("/admin"))

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
