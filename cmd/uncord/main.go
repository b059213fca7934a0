package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/goalguild/core-service/internal/api"
	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/collab"
	"github.com/goalguild/core-service/internal/config"
	"github.com/goalguild/core-service/internal/edge"
	"github.com/goalguild/core-service/internal/email"
	"github.com/goalguild/core-service/internal/gamification"
	"github.com/goalguild/core-service/internal/gateway"
	"github.com/goalguild/core-service/internal/goal"
	"github.com/goalguild/core-service/internal/guild"
	"github.com/goalguild/core-service/internal/httputil"
	"github.com/goalguild/core-service/internal/media"
	"github.com/goalguild/core-service/internal/quest"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/subscription"
	"github.com/goalguild/core-service/internal/valkey"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// questSweepInterval drives the background auto-completion sweep (C5); the teacher's equivalent periodic jobs
// (disposable-blocklist refresh, orphan-attachment purge) all run on ticker intervals measured in minutes rather
// than seconds, so this sits in the same band rather than on the 60s chat-ping cadence.
const questSweepInterval = 5 * time.Minute

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Str("env", cfg.ServerEnv).
		Msg("Starting GoalGuild core service")

	if cfg.AllowedOrigins == "*" {
		log.Warn().Msg("ALLOWED_ORIGINS is set to a wildcard. Set an explicit origin when in production.")
	}

	ctx := context.Background()

	coreStore, err := store.Connect(ctx, cfg.AWSRegion, cfg.DynamoDBBaseURL, cfg.CoreTable, cfg.GuildTable)
	if err != nil {
		return fmt.Errorf("connect dynamodb: %w", err)
	}
	log.Info().Str("coreTable", cfg.CoreTable).Str("guildTable", cfg.GuildTable).Msg("DynamoDB connected")

	rdb, err := valkey.Connect(ctx, cfg.ValkeyURL, cfg.ValkeyDialTimeout)
	if err != nil {
		return fmt.Errorf("connect valkey: %w", err)
	}
	defer func() { _ = rdb.Close() }()
	log.Info().Msg("Valkey connected")

	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	// Repositories
	users := store.NewUserRepository(coreStore)
	goals := store.NewGoalRepository(coreStore)
	tasks := store.NewTaskRepository(coreStore)
	quests := store.NewQuestRepository(coreStore)
	templates := store.NewTemplateRepository(coreStore)
	guilds := store.NewGuildRepository(coreStore)
	members := store.NewMemberRepository(coreStore)
	joinRequests := store.NewJoinRequestRepository(coreStore)
	invites := store.NewInviteRepository(coreStore)
	comments := store.NewCommentRepository(coreStore)
	reactions := store.NewReactionRepository(coreStore)
	messages := store.NewMessageRepository(coreStore)
	subEvents := store.NewSubscriptionRepository(coreStore)

	// C1 token authorizer, falling back to RS256+JWKS only when configured.
	var jwks *auth.JWKSVerifier
	if cfg.JWKSURL != "" {
		jwks, err = auth.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			return fmt.Errorf("init jwks verifier: %w", err)
		}
		log.Info().Str("jwksUrl", cfg.JWKSURL).Msg("JWKS verifier ready")
	}
	authorizer := auth.NewAuthorizer(cfg.JWTSecretParam, cfg.JWTIssuer, cfg.JWTAudience, jwks, rdb, cfg.AuthDecisionTTL)

	// C3 identity service, with SMTP delivery for signup verification where configured.
	var sender auth.Sender
	if cfg.SMTPConfigured() {
		emailClient := email.NewClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		if err := emailClient.Ping(); err != nil {
			log.Warn().Err(err).Msg("SMTP connection test failed. Verification emails may not be delivered.")
		} else {
			log.Info().Str("host", cfg.SMTPHost).Int("port", cfg.SMTPPort).Msg("SMTP connection verified")
		}
		sender = email.VerificationSender{Client: emailClient, ServerName: cfg.ServerName}
	} else {
		log.Warn().Msg("SMTP_HOST is not configured. Email verification will only work with the token logged to console.")
	}
	authService, err := auth.NewService(users, authorizer, rdb, cfg, sender, log.Logger)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}

	// C9 gamification reacts to goal/quest/comment events via per-source adapters.
	gamificationSvc := gamification.NewService(users, log.Logger)
	goalEvents := gamification.NewGoalEventAdapter(gamificationSvc)
	questEvents := gamification.NewQuestEventAdapter(gamificationSvc)
	commentEvents := gamification.NewCommentEventAdapter(gamificationSvc)

	// C4 goal/task service, C5 quest engine.
	goalSvc := goal.NewService(goals, tasks, goalEvents)
	questSvc := quest.NewService(quests, goals, questEvents)
	analyticsSvc := quest.NewAnalyticsService(questSvc, rdb)
	templateSvc := quest.NewTemplateService(templates)

	// C6 guild service: membership, avatars (S3-backed uploads), comment permission, hourly ranking job.
	guildSvc := guild.NewService(guilds, members)
	membershipSvc := guild.NewMembershipService(guilds, members, joinRequests)
	s3Uploads, err := media.NewS3Uploads(ctx, cfg.AWSRegion, "", cfg.AvatarBucket, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("init s3 avatar uploads: %w", err)
	}
	avatarSvc := guild.NewAvatarService(guilds, members, s3Uploads)
	guildCommentPerm := guild.NewCommentPermission(members)
	rankingJob := guild.NewRankingJob(guilds, members)
	go rankingJob.Run(subCtx)

	// C7 collaboration service: cross-user invites, plus the comment/reaction primitives shared between guilds (C6)
	// and goals (C7) — one CommentService/ReactionService pair per container, differing only in table and
	// permission checker.
	goalCommentPerm := collab.NewGoalPermission(goals, invites)
	guildComments := collab.NewCommentService(comments, cfg.GuildTable, store.GuildPK, guildCommentPerm, commentEvents)
	guildReactions := collab.NewReactionService(reactions, cfg.GuildTable, store.GuildPK, guildCommentPerm)
	goalComments := collab.NewCommentService(comments, cfg.CoreTable, store.GoalPK, goalCommentPerm, commentEvents)
	goalReactions := collab.NewReactionService(reactions, cfg.CoreTable, store.GoalPK, goalCommentPerm)
	inviteSvc := collab.NewInviteService(invites, goals, rdb)

	// C8 messaging core.
	publisher := gateway.NewPublisher(rdb, log.Logger)
	hub := gateway.NewHub(rdb, publisher, messages, authorizer, membershipSvc, log.Logger)
	go runWithBackoff(subCtx, "gateway-hub", hub.Run)

	// C10 subscription service.
	subscriptionSvc := subscription.NewService(users, subEvents, cfg.SubscriptionWebhookSecret)

	// Background quest auto-completion sweep (C5), ticking independently of the on-demand handler.
	go runQuestSweep(subCtx, questSvc, questSweepInterval)

	// C11 edge gateway: response cache, CORS, per-IP limiter, usage-plan limiter, sensitive-route limiter.
	responseCache, err := edge.NewResponseCache(rdb, cfg.CacheEncryptionKey)
	if err != nil {
		return fmt.Errorf("init response cache: %w", err)
	}
	planLimiter := edge.NewPlanLimiter(rdb, edge.DefaultPlans)
	sensitiveLimiter := edge.NewSensitiveLimiter(rdb)

	app := fiber.New(fiber.Config{
		AppName: "GoalGuild Core Service",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			message := "An internal error occurred"
			apiCode := apierrors.Internal
			if e, ok := errors.AsType[*fiber.Error](err); ok {
				status = e.Code
				message = e.Message
				apiCode = fiberStatusToAPICode(e.Code)
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return c.Status(status).JSON(httputil.ErrorResponse{
				Error: httputil.ErrorBody{Code: apiCode, Message: message},
			})
		},
	})

	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger, "/api/v1/health"))
	app.Use(edge.NewCORS(cfg.AllowedOriginsList()))
	app.Use(edge.NewIPLimiter(cfg.IPWindowRequests, cfg.IPWindowSeconds))

	table := routeTable(
		api.NewAuthHandler(authService),
		api.NewHealthHandler(coreStore, rdb),
		api.NewGoalHandler(goalSvc),
		api.NewQuestHandler(questSvc, analyticsSvc, templateSvc),
		api.NewGuildHandler(guildSvc, membershipSvc, avatarSvc, guildComments, guildReactions),
		api.NewCollabHandler(inviteSvc, goalComments, goalReactions),
		api.NewSubscriptionHandler(subscriptionSvc),
		api.NewGatewayHandler(hub),
	)
	table.Register(app, edge.Middlewares{
		RequireBearer: auth.RequireBearer(authorizer),
		PlanLimiter:   planLimiter.Middleware(),
		Sensitive:     sensitiveLimiter.Middleware(),
		Cache:         responseCache,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		hub.Shutdown()
		subCancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("Server listening")

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	log.Debug().
		Uint64("alloc_mb", mem.Alloc/1024/1024).
		Uint64("sys_mb", mem.Sys/1024/1024).
		Uint64("heap_inuse_mb", mem.HeapInuse/1024/1024).
		Uint32("num_gc", mem.NumGC).
		Msg("Runtime memory stats")

	if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// routeTable is the static method+path routing table for every handler the service exposes, grouped by component.
func routeTable(
	authH *api.AuthHandler,
	healthH *api.HealthHandler,
	goalH *api.GoalHandler,
	questH *api.QuestHandler,
	guildH *api.GuildHandler,
	collabH *api.CollabHandler,
	subH *api.SubscriptionHandler,
	gwH *api.GatewayHandler,
) edge.Table {
	return edge.Table{
		{Method: fiber.MethodGet, Path: "/api/v1/health", Auth: edge.APIKeyOrPublic, Handler: healthH.Health},

		// C3 identity
		{Method: fiber.MethodPost, Path: "/api/v1/auth/signup", Auth: edge.APIKeyOrPublic, Handler: authH.Signup},
		{Method: fiber.MethodPost, Path: "/api/v1/auth/verify-email", Auth: edge.APIKeyOrPublic, Handler: authH.VerifyEmail},
		{Method: fiber.MethodPost, Path: "/api/v1/auth/login", Auth: edge.APIKeyOrPublic, Handler: authH.Login},
		{Method: fiber.MethodPost, Path: "/api/v1/auth/renew", Auth: edge.Bearer, Handler: authH.Renew},
		{Method: fiber.MethodPost, Path: "/api/v1/auth/logout", Auth: edge.Bearer, Handler: authH.Logout},
		{Method: fiber.MethodGet, Path: "/api/v1/auth/profile", Auth: edge.Bearer, Handler: authH.GetProfile, CacheTTL: 5 * time.Minute},
		{Method: fiber.MethodPatch, Path: "/api/v1/auth/profile", Auth: edge.Bearer, Handler: authH.UpdateProfile},

		// C4 goal/task service
		{Method: fiber.MethodPost, Path: "/api/v1/goals", Auth: edge.Bearer, Handler: goalH.CreateGoal},
		{Method: fiber.MethodGet, Path: "/api/v1/goals", Auth: edge.Bearer, Handler: goalH.ListGoals},
		{Method: fiber.MethodGet, Path: "/api/v1/goals/:goalId/progress", Auth: edge.Bearer, Handler: goalH.GoalProgress},
		{Method: fiber.MethodPatch, Path: "/api/v1/goals/:goalId", Auth: edge.Bearer, Handler: goalH.UpdateGoal},
		{Method: fiber.MethodDelete, Path: "/api/v1/goals/:goalId", Auth: edge.Bearer, Handler: goalH.DeleteGoal},
		{Method: fiber.MethodPost, Path: "/api/v1/goals/:goalId/tasks", Auth: edge.Bearer, Handler: goalH.CreateTask},
		{Method: fiber.MethodPatch, Path: "/api/v1/goals/:goalId/tasks/:taskId", Auth: edge.Bearer, Handler: goalH.UpdateTask},
		{Method: fiber.MethodDelete, Path: "/api/v1/goals/:goalId/tasks/:taskId", Auth: edge.Bearer, Handler: goalH.DeleteTask},
		{Method: fiber.MethodPost, Path: "/api/v1/goals/:goalId/tasks/:taskId/complete", Auth: edge.Bearer, Handler: goalH.CompleteTask},

		// C7 collaboration on goals: invites, comments, reactions
		{Method: fiber.MethodPost, Path: "/api/v1/invites", Auth: edge.Bearer, Handler: collabH.CreateInvite, Sensitive: true},
		{Method: fiber.MethodGet, Path: "/api/v1/invites/inbox", Auth: edge.Bearer, Handler: collabH.ListInviteInbox},
		{Method: fiber.MethodPost, Path: "/api/v1/goals/:goalId/invite/accept", Auth: edge.Bearer, Handler: collabH.AcceptInvite},
		{Method: fiber.MethodPost, Path: "/api/v1/goals/:goalId/invite/decline", Auth: edge.Bearer, Handler: collabH.DeclineInvite},
		{Method: fiber.MethodGet, Path: "/api/v1/goals/:goalId/invites", Auth: edge.Bearer, Handler: collabH.ListSentInvites},
		{Method: fiber.MethodPost, Path: "/api/v1/goals/:goalId/comments", Auth: edge.Bearer, Handler: collabH.CreateComment},
		{Method: fiber.MethodPatch, Path: "/api/v1/goals/:goalId/comments/:commentId", Auth: edge.Bearer, Handler: collabH.UpdateComment},
		{Method: fiber.MethodDelete, Path: "/api/v1/goals/:goalId/comments/:commentId", Auth: edge.Bearer, Handler: collabH.DeleteComment},
		{Method: fiber.MethodGet, Path: "/api/v1/goals/:goalId/comments", Auth: edge.Bearer, Handler: collabH.ListComments},
		{Method: fiber.MethodPost, Path: "/api/v1/goals/:goalId/comments/:commentId/reactions", Auth: edge.Bearer, Handler: collabH.AddReaction},
		{Method: fiber.MethodDelete, Path: "/api/v1/goals/:goalId/comments/:commentId/reactions/:kind", Auth: edge.Bearer, Handler: collabH.RemoveReaction},
		{Method: fiber.MethodGet, Path: "/api/v1/goals/:goalId/comments/:commentId/reactions", Auth: edge.Bearer, Handler: collabH.ListReactions},

		// C5 quest engine
		{Method: fiber.MethodPost, Path: "/api/v1/quests", Auth: edge.Bearer, Handler: questH.CreateQuest, Sensitive: true},
		{Method: fiber.MethodGet, Path: "/api/v1/quests", Auth: edge.Bearer, Handler: questH.ListQuests, CacheTTL: 5 * time.Minute},
		{Method: fiber.MethodGet, Path: "/api/v1/quests/analytics", Auth: edge.Bearer, Handler: questH.Analytics, Sensitive: true, CacheTTL: 10 * time.Minute},
		{Method: fiber.MethodPost, Path: "/api/v1/quests/check-completion", Auth: edge.Bearer, Handler: questH.CheckCompletion, Sensitive: true},
		{Method: fiber.MethodPost, Path: "/api/v1/quests/templates", Auth: edge.Bearer, Handler: questH.CreateTemplate, Sensitive: true},
		{Method: fiber.MethodGet, Path: "/api/v1/quests/templates", Auth: edge.Bearer, Handler: questH.ListTemplates, CacheTTL: 15 * time.Minute},
		{Method: fiber.MethodGet, Path: "/api/v1/quests/templates/:templateId", Auth: edge.Bearer, Handler: questH.GetTemplate, CacheTTL: 15 * time.Minute},
		{Method: fiber.MethodPut, Path: "/api/v1/quests/templates/:templateId", Auth: edge.Bearer, Handler: questH.UpdateTemplate},
		{Method: fiber.MethodDelete, Path: "/api/v1/quests/templates/:templateId", Auth: edge.Bearer, Handler: questH.DeleteTemplate},
		{Method: fiber.MethodGet, Path: "/api/v1/quests/:questId", Auth: edge.Bearer, Handler: questH.GetQuest},
		{Method: fiber.MethodPatch, Path: "/api/v1/quests/:questId", Auth: edge.Bearer, Handler: questH.UpdateQuest},
		{Method: fiber.MethodDelete, Path: "/api/v1/quests/:questId", Auth: edge.Bearer, Handler: questH.DeleteQuest},
		{Method: fiber.MethodPost, Path: "/api/v1/quests/:questId/start", Auth: edge.Bearer, Handler: questH.StartQuest},
		{Method: fiber.MethodPost, Path: "/api/v1/quests/:questId/cancel", Auth: edge.Bearer, Handler: questH.CancelQuest},
		{Method: fiber.MethodPost, Path: "/api/v1/quests/:questId/fail", Auth: edge.Bearer, Handler: questH.FailQuest},
		{Method: fiber.MethodPost, Path: "/api/v1/quests/:questId/complete", Auth: edge.Bearer, Handler: questH.CompleteQuest},

		// C6 guild service
		{Method: fiber.MethodPost, Path: "/api/v1/guilds", Auth: edge.Bearer, Handler: guildH.CreateGuild},
		{Method: fiber.MethodGet, Path: "/api/v1/guilds", Auth: edge.Bearer, Handler: guildH.ListGuildsByType},
		{Method: fiber.MethodGet, Path: "/api/v1/guilds/owned", Auth: edge.Bearer, Handler: guildH.ListOwnedGuilds},
		{Method: fiber.MethodGet, Path: "/api/v1/guilds/:guildId", Auth: edge.Bearer, Handler: guildH.GetGuild},
		{Method: fiber.MethodPatch, Path: "/api/v1/guilds/:guildId", Auth: edge.Bearer, Handler: guildH.UpdateGuild},
		{Method: fiber.MethodDelete, Path: "/api/v1/guilds/:guildId", Auth: edge.Bearer, Handler: guildH.DeleteGuild},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/join", Auth: edge.Bearer, Handler: guildH.RequestJoin},
		{Method: fiber.MethodDelete, Path: "/api/v1/guilds/:guildId/join", Auth: edge.Bearer, Handler: guildH.CancelJoinRequest},
		{Method: fiber.MethodGet, Path: "/api/v1/guilds/:guildId/join-requests", Auth: edge.Bearer, Handler: guildH.ListPendingJoinRequests},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/join-requests/:userId/approve", Auth: edge.Bearer, Handler: guildH.ApproveJoinRequest},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/join-requests/:userId/reject", Auth: edge.Bearer, Handler: guildH.RejectJoinRequest},
		{Method: fiber.MethodDelete, Path: "/api/v1/guilds/:guildId/members/me", Auth: edge.Bearer, Handler: guildH.LeaveGuild},
		{Method: fiber.MethodDelete, Path: "/api/v1/guilds/:guildId/members/:userId", Auth: edge.Bearer, Handler: guildH.RemoveMember},
		{Method: fiber.MethodPut, Path: "/api/v1/guilds/:guildId/members/:userId/blocked", Auth: edge.Bearer, Handler: guildH.SetMemberBlocked},
		{Method: fiber.MethodPut, Path: "/api/v1/guilds/:guildId/members/:userId/moderator", Auth: edge.Bearer, Handler: guildH.SetMemberModerator},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/transfer-ownership", Auth: edge.Bearer, Handler: guildH.TransferOwnership},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/avatar/upload-url", Auth: edge.Bearer, Handler: guildH.RequestAvatarUpload},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/avatar/confirm", Auth: edge.Bearer, Handler: guildH.ConfirmAvatarUpload},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/comments", Auth: edge.Bearer, Handler: guildH.CreateComment},
		{Method: fiber.MethodPatch, Path: "/api/v1/guilds/:guildId/comments/:commentId", Auth: edge.Bearer, Handler: guildH.UpdateComment},
		{Method: fiber.MethodDelete, Path: "/api/v1/guilds/:guildId/comments/:commentId", Auth: edge.Bearer, Handler: guildH.DeleteComment},
		{Method: fiber.MethodGet, Path: "/api/v1/guilds/:guildId/comments", Auth: edge.Bearer, Handler: guildH.ListComments},
		{Method: fiber.MethodPost, Path: "/api/v1/guilds/:guildId/comments/:commentId/reactions", Auth: edge.Bearer, Handler: guildH.AddReaction},
		{Method: fiber.MethodDelete, Path: "/api/v1/guilds/:guildId/comments/:commentId/reactions/:kind", Auth: edge.Bearer, Handler: guildH.RemoveReaction},
		{Method: fiber.MethodGet, Path: "/api/v1/guilds/:guildId/comments/:commentId/reactions", Auth: edge.Bearer, Handler: guildH.ListReactions},

		// C10 subscription webhook (verified by its own HMAC signature, not a bearer token)
		{Method: fiber.MethodPost, Path: "/api/v1/subscriptions/webhook", Auth: edge.APIKeyOrPublic, Handler: subH.HandleWebhook},

		// C8 messaging core: WebSocket upgrade, authenticated inside the handshake itself
		{Method: fiber.MethodGet, Path: "/api/v1/gateway/:roomId", Auth: edge.Public, Handler: gwH.Upgrade},
	}
}

// runQuestSweep drives quest.Service.SweepAll on a fixed interval until ctx is cancelled, the background
// counterpart to the on-demand POST /quests/check-completion handler (§4.5's auto-completion sweep).
func runQuestSweep(ctx context.Context, svc *quest.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := svc.SweepAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Quest sweep failed")
				continue
			}
			if result.Completed > 0 || result.Failed > 0 {
				log.Info().Int("scanned", result.Scanned).Int("completed", result.Completed).Int("failed", result.Failed).
					Msg("Quest sweep completed")
			}
		}
	}
}

// runWithBackoff runs fn in a loop, restarting with exponential backoff when it returns a non-nil, non-cancelled
// error. If fn returns nil or context.Canceled the goroutine exits. The delay starts at 1 second and doubles on
// each consecutive failure up to a 2-minute cap.
func runWithBackoff(ctx context.Context, name string, fn func(context.Context) error) {
	const (
		initialDelay = time.Second
		maxDelay     = 2 * time.Minute
	)
	delay := initialDelay
	for {
		if err := fn(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("service", name).Dur("retry_in", delay).
				Msg("Background service stopped, restarting after delay")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
			continue
		}
		return
	}
}

// fiberStatusToAPICode maps an HTTP status code from Fiber's built-in errors (404, 405, etc.) to the closest
// apierrors code.
func fiberStatusToAPICode(status int) apierrors.Code {
	switch status {
	case fiber.StatusNotFound:
		return apierrors.NotFound
	case fiber.StatusTooManyRequests:
		return apierrors.Throttled
	case fiber.StatusServiceUnavailable:
		return apierrors.DependencyUnavailable
	default:
		if status >= 400 && status < 500 {
			return apierrors.ValidationFailed
		}
		return apierrors.Internal
	}
}
