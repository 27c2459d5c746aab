package drawcli

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	service "github.com/okian/whattoeat/internal/app"
	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/session"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
)

// Local runs draws against an in-process service with an in-memory store.
type Local struct {
	svc *service.Service
}

// NewLocal loads the menu at catalogPath and starts a service over it.
func NewLocal(ctx context.Context, catalogPath string, seed uint64, opts ...service.Option) (*Local, error) {
	menu, err := catalog.Load(ctx, catalogPath)
	if err != nil {
		return nil, err
	}
	base := []service.Option{
		service.WithCatalog(menu),
		service.WithLogger(logger.Named("service")),
	}
	if seed != 0 {
		base = append(base, service.WithSeed(seed))
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start service: %w", err)
	}
	return &Local{svc: svc}, nil
}

// Vendors implements Backend.
func (l *Local) Vendors(context.Context) ([]catalog.Vendor, error) {
	return l.svc.Catalog().Vendors(), nil
}

// Draw implements Backend.
func (l *Local) Draw(ctx context.Context) (types.Draw, error) {
	return l.svc.Draw(ctx, model.SourceAPI)
}

// Spin implements Backend.
func (l *Local) Spin(ctx context.Context, onTick func(types.Tick)) (types.Draw, error) {
	s, err := l.svc.CreateSession(ctx)
	if err != nil {
		return types.Draw{}, err
	}
	defer func() { _ = l.svc.DeleteSession(context.Background(), s.ID) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, unsubscribe, err := l.svc.Subscribe(ctx, s.ID)
	if err != nil {
		return types.Draw{}, err
	}
	defer unsubscribe()

	send := func(cmd session.Command) func(context.Context) error {
		return func(ctx context.Context) error {
			_, _, err := l.svc.Command(ctx, s.ID, cmd, uuid.NewString())
			return err
		}
	}
	return follow(ctx, events, send(session.CommandStart), send(session.CommandStop), onTick)
}

// Close implements Backend.
func (l *Local) Close() error {
	l.svc.Stop()
	return nil
}
