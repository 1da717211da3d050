/*
Mazelab is a small laboratory for grid mazes with walls and probabilistic holes. The same grid
world is solved by classical pathfinders (depth-first, breadth-first, backtracking) and learned by
tabular Q-learning, whose value function and greedy policy can be watched in realtime in the
browser while it trains. Mazes live in a folder of map.json files or in redis.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"

	"mazelab/agent"
	"mazelab/grid_world"
	"mazelab/maze_store"
	"mazelab/maze_view"
	"mazelab/reinforcement"
	"mazelab/report"
	"mazelab/search"
	"mazelab/server"
	"mazelab/server/cell_views"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	mode       *string
	mazeName   *string
	algorithm  *string
	pathArg    *string
	configPath *string
	reportPath *string
	mazesDir   *string
	redisAddr  *string
	host       *string
	port       *string
	noColor    *bool
	numeric    *bool
)

// loadSettings supplies the flag defaults from an optional .env file and MAZELAB_* variables.
func loadSettings() *viper.Viper {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Println("env:", err)
	}

	vp := viper.New()
	vp.SetEnvPrefix("MAZELAB")
	vp.AutomaticEnv()
	vp.SetDefault("mode", "train")
	vp.SetDefault("maze", "Lab_6x6")
	vp.SetDefault("algorithm", "")
	vp.SetDefault("config", "./config.yaml")
	vp.SetDefault("report", "")
	vp.SetDefault("mazes", "./mazes")
	vp.SetDefault("redis", "")
	vp.SetDefault("host", "localhost")
	vp.SetDefault("port", "8080")
	return vp
}

func parseFlags(vp *viper.Viper) {
	mode = flag.String("mode", vp.GetString("mode"), "serve, train, search or trace")
	mazeName = flag.String("maze", vp.GetString("maze"), "the maze to load")
	algorithm = flag.String("algorithm", vp.GetString("algorithm"), "search algorithm: dfs, bfs or backtrack; all when empty")
	pathArg = flag.String("path", "", "comma separated actions to trace, e.g. right,down,reset")
	configPath = flag.String("config", vp.GetString("config"), "training config")
	reportPath = flag.String("report", vp.GetString("report"), "html file for the learning curve")
	mazesDir = flag.String("mazes", vp.GetString("mazes"), "folder of <name>/map.json mazes")
	redisAddr = flag.String("redis", vp.GetString("redis"), "redis address; the mazes folder is imported into it")
	host = flag.String("host", vp.GetString("host"), "the host ip")
	port = flag.String("port", vp.GetString("port"), "the host port")
	noColor = flag.Bool("nocolor", false, "disable terminal colors")
	numeric = flag.Bool("numeric", false, "print hole probabilities instead of blank holes")
	flag.Parse()
}

// openStore returns the file store, or a redis store seeded with the files' mazes.
func openStore(ctx context.Context, dir, addr string) (store maze_store.Store, closeFn func(), err error) {
	files := maze_store.NewFileStore(dir)
	if addr == "" {
		return files, func() {}, nil
	}

	client, err := maze_store.DialRedis(ctx, addr, os.Getenv("MAZELAB_REDIS_PASSWORD"), 0)
	if err != nil {
		return nil, nil, err
	}
	redisStore := maze_store.NewRedisStore(client, "")
	n, err := importMazes(ctx, files, redisStore)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	if n > 0 {
		log.Printf("imported %d mazes into redis", n)
	}
	return redisStore, func() { client.Close() }, nil
}

// importMazes copies the mazes missing from dst and returns how many were copied.
func importMazes(ctx context.Context, src, dst maze_store.Store) (int, error) {
	names, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	copied := 0
	for _, name := range names {
		if _, err := dst.Load(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, maze_store.ErrNotFound) {
			return copied, err
		}
		def, err := src.Load(ctx, name)
		if err != nil {
			return copied, err
		}
		if err := dst.Save(ctx, def); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

// parsePath splits a comma separated list of action labels.
func parsePath(arg string) (actions []string) {
	for _, label := range strings.Split(arg, ",") {
		if label = strings.ToLower(strings.TrimSpace(label)); label != "" {
			actions = append(actions, label)
		}
	}
	return
}

func newView(g *grid_world.Grid) *maze_view.MazeView {
	return maze_view.New(g.Name(), g,
		maze_view.WithColors(!*noColor),
		maze_view.WithNumericHazards(*numeric))
}

// drawPath walks a search result with a cursor. Searches ignore holes, so the
// cursor steps over them rather than stopping.
func drawPath(g *grid_world.Grid, path []grid_world.Direction) (string, error) {
	mv := newView(g)
	cursor := agent.New(g, agent.WithObserver(mv), agent.WithStepOverHazards(true))
	if err := cursor.Follow(path, false, true); err != nil {
		return "", err
	}
	return mv.Draw(), nil
}

// runSearch prints the path found by one or every algorithm.
func runSearch(g *grid_world.Grid, algName string) error {
	algs := search.Algorithms
	if algName != "" {
		alg, err := search.ParseAlgorithm(algName)
		if err != nil {
			return err
		}
		algs = []search.Algorithm{alg}
	}

	for _, alg := range algs {
		result, err := search.Solve(g, alg)
		if err != nil {
			return err
		}
		drawn, err := drawPath(g, result.Path)
		if err != nil {
			return err
		}
		fmt.Println(drawn)
		if !result.Found {
			fmt.Printf("%s: no path, %d nodes investigated\n\n", alg, result.NodesInvestigated)
			continue
		}
		fmt.Printf("%s: %d steps, %d nodes investigated\n%s\n\n",
			alg, len(result.Path), result.NodesInvestigated,
			strings.Join(grid_world.Labels(result.Path), ","))
	}
	return nil
}

// runTrace walks the given actions, resetting on holes and halting at the goal.
func runTrace(g *grid_world.Grid, actions []string) error {
	if len(actions) == 0 {
		return fmt.Errorf("%w: trace needs -path", grid_world.ErrConfiguration)
	}
	mv := newView(g)
	cursor := agent.New(g, agent.WithObserver(mv))
	if err := cursor.TracePath(actions, true, true); err != nil {
		return err
	}
	fmt.Println(mv.Draw())
	fmt.Println("mode:", cursor.Mode())
	return nil
}

// newTraining builds the grid's learner and training cursor from the config.
func newTraining(g *grid_world.Grid, cfg *reinforcement.TrainingConfig) (*agent.Agent, *reinforcement.QLearner, error) {
	var opts []reinforcement.LearnerOption
	if cfg.Seed != 0 {
		opts = append(opts, reinforcement.WithLearnerRand(rand.New(rand.NewSource(cfg.Seed))))
	}
	cursor := agent.New(g, agent.WithName("learner"))
	learner, err := cfg.NewLearner(cursor.States(), cursor.Actions(), opts...)
	return cursor, learner, err
}

// logProgress logs a summary of the last window of episodes every n episodes.
func logProgress(runID string, every int) reinforcement.ProgressFunc {
	if every < 1 {
		every = 1
	}
	goals, reward := 0, 0.0
	return func(_ context.Context, stats reinforcement.EpisodeStats) {
		if stats.Outcome == reinforcement.Goal {
			goals++
		}
		reward += stats.Reward
		if (stats.Episode+1)%every != 0 {
			return
		}
		log.Printf("run %s: episode %d, goals %d/%d, mean reward %.3f",
			runID, stats.Episode+1, goals, every, reward/float64(every))
		goals, reward = 0, 0
	}
}

// publishSnapshots sends a snapshot after every episode, unless the views are still
// busy with the previous one.
func publishSnapshots(
	snapshots chan<- cell_views.Snapshot,
	g *grid_world.Grid,
	table *reinforcement.QTable,
) reinforcement.ProgressFunc {
	goals := 0
	return func(ctx context.Context, stats reinforcement.EpisodeStats) {
		if stats.Outcome == reinforcement.Goal {
			goals++
		}
		snap := cell_views.Snapshot{Grid: g, Table: table, Stats: stats, Goals: goals}
		select {
		case snapshots <- snap:
		case <-ctx.Done():
		default:
		}
	}
}

// finalSnapshot describes the end of a training history.
func finalSnapshot(
	g *grid_world.Grid,
	table *reinforcement.QTable,
	history []reinforcement.EpisodeStats,
) cell_views.Snapshot {
	snap := cell_views.Snapshot{Grid: g, Table: table}
	for _, stats := range history {
		if stats.Outcome == reinforcement.Goal {
			snap.Goals++
		}
	}
	if len(history) > 0 {
		snap.Stats = history[len(history)-1]
	}
	return snap
}

// chain calls each progress func in order.
func chain(fns ...reinforcement.ProgressFunc) reinforcement.ProgressFunc {
	return func(ctx context.Context, stats reinforcement.EpisodeStats) {
		for _, fn := range fns {
			fn(ctx, stats)
		}
	}
}

func printResult(g *grid_world.Grid, cursor *agent.Agent, learner *reinforcement.QLearner, cfg *reinforcement.TrainingConfig) {
	policy, determined := learner.Policy()
	mv := newView(g)
	mv.AddWidget(maze_view.PolicyWidget(g, policy, determined))
	fmt.Println(mv.Draw())

	path, outcome := reinforcement.Rollout(cursor, learner, cfg.MaxSteps(cursor.States()))
	mv = newView(g)
	mv.AddWidget(maze_view.PathWidget(g, path))
	fmt.Println(mv.Draw())
	fmt.Printf("greedy rollout: %s after %d steps\n", outcome, len(path))
}

func runTrain(ctx context.Context, g *grid_world.Grid, cfg *reinforcement.TrainingConfig, runID string) error {
	cursor, learner, err := newTraining(g, cfg)
	if err != nil {
		return err
	}

	trainingCtx, cancel, err := cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	log.Printf("run %s: training %s for %d episodes", runID, g.Name(), cfg.Episodes)
	history, err := reinforcement.Train(trainingCtx, cursor, learner, cfg, logProgress(runID, cfg.ReportEvery))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err != nil {
		log.Printf("run %s: deadline reached after %d episodes", runID, len(history))
	}

	printResult(g, cursor, learner, cfg)
	if *reportPath != "" && len(history) > 0 {
		title := fmt.Sprintf("%s (%s)", g.Name(), runID)
		if err := report.WriteLearningCurve(*reportPath, title, history); err != nil {
			return err
		}
		log.Println("wrote", *reportPath)
	}
	return nil
}

// runServe trains in the background while serving the live views and the maze api.
func runServe(ctx context.Context, store maze_store.Store, g *grid_world.Grid, cfg *reinforcement.TrainingConfig, runID string) error {
	cursor, learner, err := newTraining(g, cfg)
	if err != nil {
		return err
	}

	snapshots := make(chan cell_views.Snapshot)
	srv, err := server.NewServer(
		ctx,
		*host+":"+*port,
		store,
		cell_views.Snapshot{Grid: g, Table: learner.Table()},
		snapshots,
	)
	if err != nil {
		return err
	}

	trainingCtx, cancel, err := cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return err
	}
	go func() {
		defer cancel()
		progress := chain(
			logProgress(runID, cfg.ReportEvery),
			publishSnapshots(snapshots, g, learner.Table()),
		)
		history, err := reinforcement.Train(trainingCtx, cursor, learner, cfg, progress)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			log.Printf("run %s: training: %v", runID, err)
			return
		}
		log.Printf("run %s: training finished after %d episodes", runID, len(history))

		// Publishing drops snapshots while the views are busy, so the last one is sent unconditionally.
		select {
		case snapshots <- finalSnapshot(g, learner.Table(), history):
		case <-ctx.Done():
		}
	}()

	return srv.Serve()
}

func runApp() (err error) {
	parseFlags(loadSettings())

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer appCancel()

	store, closeStore, err := openStore(appCtx, *mazesDir, *redisAddr)
	if err != nil {
		return
	}
	defer closeStore()

	g, err := maze_store.LoadGrid(appCtx, store, *mazeName)
	if err != nil {
		return fmt.Errorf("maze %s: %w", *mazeName, err)
	}

	switch *mode {
	case "search":
		return runSearch(g, *algorithm)
	case "trace":
		return runTrace(g, parsePath(*pathArg))
	case "train", "serve":
	default:
		return fmt.Errorf("%w: unknown mode %q", grid_world.ErrConfiguration, *mode)
	}

	var cfg *reinforcement.TrainingConfig
	if cfg, err = reinforcement.FromYaml(*configPath); err != nil {
		return
	}
	if cfg.Seed != 0 {
		// Hazard draws are reproducible too.
		if g, err = maze_store.LoadGrid(appCtx, store, *mazeName,
			grid_world.WithRand(rand.New(rand.NewSource(cfg.Seed+1)))); err != nil {
			return
		}
	}

	runID := uuid.NewString()
	if *mode == "serve" {
		return runServe(appCtx, store, g, cfg, runID)
	}
	return runTrain(appCtx, g, cfg, runID)
}

func main() {
	if err := runApp(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
