package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/internal/subscription"
	"github.com/vogiaan1904/vcping/pkg/clock"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

// Sink receives voice-state changes from the gateway, either the local
// dispatcher or the Kafka relay.
type Sink interface {
	Dispatch(ctx context.Context, raw domain.RawVoiceState) error
}

type SinkFunc func(ctx context.Context, raw domain.RawVoiceState) error

func (f SinkFunc) Dispatch(ctx context.Context, raw domain.RawVoiceState) error {
	return f(ctx, raw)
}

type GatewayConfig struct {
	RegisterCommands bool
}

type Gateway struct {
	s     *discordgo.Session
	sink  Sink
	subs  subscription.Service
	clock clock.Clock
	cfg   GatewayConfig
	l     logger.Logger

	ctx      context.Context
	mu       sync.Mutex
	removers []func()
}

func NewGateway(
	s *discordgo.Session,
	sink Sink,
	subs subscription.Service,
	clk clock.Clock,
	cfg GatewayConfig,
	l logger.Logger,
) *Gateway {
	return &Gateway{
		s:     s,
		sink:  sink,
		subs:  subs,
		clock: clk,
		cfg:   cfg,
		l:     l,
		ctx:   context.Background(),
	}
}

// Start registers the event handlers and connects to the gateway.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if len(g.removers) > 0 {
		g.mu.Unlock()
		return errors.New("gateway is already running")
	}
	g.ctx = ctx
	g.removers = append(g.removers,
		g.s.AddHandler(g.onReady),
		g.s.AddHandler(g.onVoiceStateUpdate),
		g.s.AddHandler(g.onInteractionCreate),
	)
	g.mu.Unlock()

	if err := g.s.Open(); err != nil {
		g.removeHandlers()
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	g.l.Info(ctx, "Discord gateway connected")
	return nil
}

func (g *Gateway) Close() error {
	g.removeHandlers()
	if err := g.s.Close(); err != nil {
		return err
	}

	g.l.Info(context.Background(), "Discord gateway closed")
	return nil
}

func (g *Gateway) removeHandlers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, remove := range g.removers {
		remove()
	}
	g.removers = nil
}

func (g *Gateway) baseContext() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctx
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	ctx := g.baseContext()
	g.l.Infof(ctx, "Logged in as %s, %d guilds", r.User.Username, len(r.Guilds))

	if !g.cfg.RegisterCommands {
		return
	}
	if err := registerCommands(s, r.User.ID); err != nil {
		g.l.Errorf(ctx, "delivery.discord.Gateway.onReady: %v", err)
	}
}

func (g *Gateway) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	raw, ok := toRawVoiceState(v, g.clock.Now())
	if !ok {
		return
	}

	ctx := g.baseContext()
	if err := g.sink.Dispatch(ctx, raw); err != nil {
		g.l.Errorf(ctx, "delivery.discord.Gateway.onVoiceStateUpdate: %v", err)
	}
}

func (g *Gateway) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != commandName {
		return
	}

	ctx := g.baseContext()
	content := g.handleToggle(ctx, i.Interaction)

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		g.l.Errorf(ctx, "delivery.discord.Gateway.onInteractionCreate: %v", err)
	}
}
