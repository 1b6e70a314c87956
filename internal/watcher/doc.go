// Package watcher reindexes content sources when their files change.
//
// A HybridWatcher reports file events under the source directories, using
// fsnotify and falling back to polling where fsnotify cannot start. Events
// feed a Scheduler, which debounces them and runs the indexing pipeline
// once per quiet period:
//
//	sched := watcher.NewScheduler(run,
//	    watcher.WithQuietPeriod(5*time.Second),
//	    watcher.WithIgnore(config.DefaultIgnore))
//	go sched.Run(ctx)
//
//	w := watcher.NewHybridWatcher(root, watcher.DefaultOptions())
//	defer w.Stop()
//	err := w.Run(ctx, dirs, sched.Notify)
//
// Watch wires both together for a configured root.
package watcher
