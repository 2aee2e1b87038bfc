//go:build integration

package integration

import (
	"io/fs"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/catalog"
	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
	"github.com/eliteGoblin/focusd/appsweep/internal/infra"
	"github.com/eliteGoblin/focusd/appsweep/internal/scheduler"
	"github.com/eliteGoblin/focusd/appsweep/internal/usecase"
	"github.com/eliteGoblin/focusd/appsweep/test/fixtures"
)

// harness wires the real components against a fake home.
type harness struct {
	lib       *fixtures.FakeLibrary
	discovery *usecase.Discovery
	remover   *usecase.Remover
	sched     *scheduler.Scheduler
	roots     []string
}

func newHarness(lib *fixtures.FakeLibrary, trash *infra.Trash) *harness {
	logger := zap.NewNop()
	fsm := infra.NewFileSystemManagerWithHome(lib.HomeDir)
	reader := infra.NewBundleReader()
	inspector := infra.NewProcessInspector(reader, logger)
	registry := catalog.NewRegistryWithHome(lib.HomeDir, lib.SystemRoot)
	correlator := usecase.NewCorrelator(registry, fsm, logger)

	return &harness{
		lib:       lib,
		discovery: usecase.NewDiscovery(fsm, reader, inspector, correlator, logger),
		remover:   usecase.NewRemover(trash, inspector, fsm, registry, logger),
		sched:     scheduler.New(scheduler.NewStore(), logger),
		roots:     []string{lib.UserApplications(), lib.SystemApplications()},
	}
}

func (h *harness) scan() ([]domain.TaskProgress, scheduler.Completion) {
	run, err := h.sched.Start(scheduler.NewScanTask(h.discovery, h.roots))
	Expect(err).NotTo(HaveOccurred())

	var progress []domain.TaskProgress
	var done scheduler.Completion
	for ev := range run.Events() {
		if ev.Progress != nil {
			progress = append(progress, *ev.Progress)
		}
		if ev.Done != nil {
			done = *ev.Done
		}
	}
	return progress, done
}

func (h *harness) remove(items []domain.RemovalItem) ([]domain.RemovalOutcome, scheduler.Completion) {
	run, err := h.sched.Start(scheduler.NewRemovalTask(h.remover, items))
	Expect(err).NotTo(HaveOccurred())

	var outcomes []domain.RemovalOutcome
	var done scheduler.Completion
	for ev := range run.Events() {
		if ev.Outcome != nil {
			outcomes = append(outcomes, *ev.Outcome)
		}
		if ev.Done != nil {
			done = *ev.Done
		}
	}
	return outcomes, done
}

func (h *harness) refresh(bundlePath string) scheduler.Completion {
	run, err := h.sched.Start(scheduler.NewRefreshTask(h.discovery, bundlePath))
	Expect(err).NotTo(HaveOccurred())
	run.Discard()
	return run.Wait()
}

func (h *harness) app(name string) domain.AppRecord {
	for _, a := range h.sched.Store().Apps() {
		if a.DisplayName == name {
			return a
		}
	}
	Fail("no app named " + name)
	return domain.AppRecord{}
}

func paths(entries []domain.FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

var _ = Describe("Sweep", func() {
	var (
		tmpDir string
		lib    *fixtures.FakeLibrary
		h      *harness
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "appsweep-integration-*")
		Expect(err).NotTo(HaveOccurred())

		lib = fixtures.NewFakeLibrary(filepath.Join(tmpDir, "home"), filepath.Join(tmpDir, "system"))
		Expect(lib.Create()).To(Succeed())

		trash := infra.NewTrashWithDir(infra.FlavorMacOS, lib.TrashDir(), nil, zap.NewNop())
		h = newHarness(lib, trash)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Scanning", func() {
		Context("when Foo and Bar are installed", func() {
			It("should list both apps sorted by name", func() {
				_, done := h.scan()
				Expect(done.State).To(Equal(scheduler.StateCompleted))

				apps := h.sched.Store().Apps()
				Expect(apps).To(HaveLen(2))
				Expect(apps[0].DisplayName).To(Equal("Bar"))
				Expect(apps[1].DisplayName).To(Equal("Foo"))
				Expect(apps[0].Version).To(Equal("2.3.1"))
			})

			It("should correlate Bar's leftovers in catalog order", func() {
				h.scan()

				bar := h.app("Bar")
				Expect(paths(bar.RelatedFiles)).To(Equal(lib.BarLeftovers()))
				Expect(bar.TotalSize()).To(BeNumerically(">=", int64(120+4096+512+256+64)))
			})

			It("should not attribute unrelated files", func() {
				h.scan()

				for _, a := range h.sched.Store().Apps() {
					Expect(paths(a.RelatedFiles)).NotTo(ContainElement(
						lib.Library("Preferences", "com.acme.Unrelated.plist")))
				}
				Expect(h.app("Foo").RelatedFiles).To(BeEmpty())
			})

			It("should report progress up to the bundle count", func() {
				progress, _ := h.scan()

				Expect(progress).NotTo(BeEmpty())
				last := progress[len(progress)-1]
				Expect(last.Current).To(Equal(2))
				Expect(last.Total).To(Equal(2))
			})

			It("should return the same result when scanned twice", func() {
				h.scan()
				first := h.sched.Store().Apps()
				h.scan()
				Expect(h.sched.Store().Apps()).To(Equal(first))
			})
		})

		Context("when a bundle has no manifest", func() {
			It("should keep it as a degraded record matched by name", func() {
				_, err := lib.AddApp(lib.UserApplications(), fixtures.FakeApp{Name: "Orphan", SkipManifest: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(lib.AddFile(lib.Library("Application Support", "Orphan", "data"), 10)).To(Succeed())

				h.scan()

				orphan := h.app("Orphan")
				Expect(orphan.Degraded).To(BeTrue())
				Expect(orphan.Identifier).To(BeEmpty())
				Expect(paths(orphan.RelatedFiles)).To(ConsistOf(lib.Library("Application Support", "Orphan")))
				Expect(orphan.RelatedFiles[0].LowConfidence()).To(BeTrue())
			})
		})

		Context("when an installation root is missing", func() {
			It("should scan the remaining roots without diagnostics", func() {
				Expect(os.RemoveAll(lib.UserApplications())).To(Succeed())

				_, done := h.scan()

				Expect(done.State).To(Equal(scheduler.StateCompleted))
				Expect(done.Scan.Diagnostics).To(BeEmpty())
				Expect(h.sched.Store().Apps()).To(HaveLen(2))
			})
		})

		Context("when the app is running", func() {
			It("should mark it running", func() {
				self, err := process.NewProcess(int32(os.Getpid()))
				Expect(err).NotTo(HaveOccurred())
				name, err := self.Name()
				Expect(err).NotTo(HaveOccurred())

				_, err = lib.AddApp(lib.UserApplications(), fixtures.FakeApp{
					Name:       "SweepRunner",
					Identifier: "com.acme.SweepRunner",
					Executable: name,
				})
				Expect(err).NotTo(HaveOccurred())

				h.scan()

				Expect(h.app("SweepRunner").IsRunning).To(BeTrue())
				Expect(h.app("Foo").IsRunning).To(BeFalse())
			})
		})
	})

	Describe("Removal", func() {
		Context("when Bar's files are selected", func() {
			It("should move every file to the trash and prune the record", func() {
				h.scan()
				bar := h.app("Bar")
				store := h.sched.Store()
				n, err := store.SelectWhere(bar.BundlePath, func(e domain.FileEntry) bool { return !e.LowConfidence() })
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeNumerically(">", 0))

				items := store.SelectedItems()
				outcomes, done := h.remove(items)

				Expect(done.State).To(Equal(scheduler.StateCompleted))
				Expect(outcomes).To(HaveLen(len(items)))
				for _, o := range outcomes {
					Expect(o.Status).To(Equal(domain.StatusMoved), o.Path)
					Expect(lib.Exists(o.Path)).To(BeFalse())
					Expect(lib.Exists(o.Destination)).To(BeTrue())
					Expect(filepath.Dir(o.Destination)).To(Equal(lib.TrashDir()))
				}

				remaining := paths(h.app("Bar").RelatedFiles)
				for _, item := range items {
					Expect(remaining).NotTo(ContainElement(item.Path))
				}
			})

			It("should report moved files as missing on a second attempt", func() {
				h.scan()
				bar := h.app("Bar")
				items := []domain.RemovalItem{{Path: bar.RelatedFiles[0].Path, Owner: bar}}

				first, _ := h.remove(items)
				Expect(first[0].Status).To(Equal(domain.StatusMoved))

				second, done := h.remove(items)
				Expect(done.State).To(Equal(scheduler.StateCompleted))
				Expect(second[0].Status).To(Equal(domain.StatusSkippedMissing))
			})
		})

		Context("when the bundle itself is selected", func() {
			It("should move the bundle and drop the record", func() {
				h.scan()
				foo := h.app("Foo")

				outcomes, _ := h.remove([]domain.RemovalItem{{Path: foo.BundlePath, Owner: foo}})

				Expect(outcomes[0].Status).To(Equal(domain.StatusMoved))
				Expect(lib.Exists(foo.BundlePath)).To(BeFalse())
				_, ok := h.sched.Store().App(foo.BundlePath)
				Expect(ok).To(BeFalse())
			})
		})

		Context("when the owner is running", func() {
			It("should skip its files and leave them in place", func() {
				self, err := process.NewProcess(int32(os.Getpid()))
				Expect(err).NotTo(HaveOccurred())
				name, err := self.Name()
				Expect(err).NotTo(HaveOccurred())

				_, err = lib.AddApp(lib.UserApplications(), fixtures.FakeApp{
					Name:       "SweepRunner",
					Identifier: "com.acme.SweepRunner",
					Executable: name,
				})
				Expect(err).NotTo(HaveOccurred())
				cache := lib.Library("Caches", "com.acme.SweepRunner")
				Expect(lib.AddFile(filepath.Join(cache, "blob"), 32)).To(Succeed())

				h.scan()
				runner := h.app("SweepRunner")
				outcomes, _ := h.remove([]domain.RemovalItem{{Path: cache, Owner: runner}})

				Expect(outcomes[0].Status).To(Equal(domain.StatusSkippedRunning))
				Expect(lib.Exists(cache)).To(BeTrue())
			})
		})

		Context("when a path lies outside the search roots", func() {
			It("should refuse to touch it", func() {
				h.scan()
				bar := h.app("Bar")
				outside := filepath.Join(tmpDir, "elsewhere.txt")
				Expect(lib.AddFile(outside, 1)).To(Succeed())

				outcomes, _ := h.remove([]domain.RemovalItem{{Path: outside, Owner: bar}})

				Expect(outcomes[0].Status).To(Equal(domain.StatusFailed))
				Expect(outcomes[0].Reason).To(Equal(usecase.ReasonOutsideRoots))
				Expect(lib.Exists(outside)).To(BeTrue())
			})
		})

		Context("when no holding area is available", func() {
			It("should fail the task without moving anything", func() {
				h = newHarness(lib, infra.NewTrashWithDir(infra.FlavorNone, "", nil, zap.NewNop()))
				h.scan()
				bar := h.app("Bar")
				target := bar.RelatedFiles[0].Path

				outcomes, done := h.remove([]domain.RemovalItem{{Path: target, Owner: bar}})

				Expect(done.State).To(Equal(scheduler.StateFailed))
				Expect(done.Err).To(MatchError(domain.ErrUnsupported))
				Expect(outcomes).To(BeEmpty())
				Expect(lib.Exists(target)).To(BeTrue())
				Expect(h.app("Bar").RelatedFiles).To(HaveLen(len(bar.RelatedFiles)))
			})
		})
	})

	Describe("Refresh", func() {
		Context("when Foo gains a preference file after the scan", func() {
			It("should attribute it without touching Bar", func() {
				h.scan()
				foo := h.app("Foo")
				Expect(foo.RelatedFiles).To(BeEmpty())
				barBefore := h.app("Bar")

				pref := lib.Library("Preferences", "com.acme.Foo.plist")
				Expect(lib.AddFile(pref, 32)).To(Succeed())

				done := h.refresh(foo.BundlePath)

				Expect(done.State).To(Equal(scheduler.StateCompleted))
				Expect(paths(h.app("Foo").RelatedFiles)).To(Equal([]string{pref}))
				Expect(h.app("Bar")).To(Equal(barBefore))
			})
		})

		Context("when the bundle was deleted after the scan", func() {
			It("should fail and keep the published record", func() {
				h.scan()
				foo := h.app("Foo")
				Expect(os.RemoveAll(foo.BundlePath)).To(Succeed())

				done := h.refresh(foo.BundlePath)

				Expect(done.State).To(Equal(scheduler.StateFailed))
				Expect(done.Err).To(MatchError(fs.ErrNotExist))
				Expect(h.app("Foo").BundlePath).To(Equal(foo.BundlePath))
			})
		})
	})
})
