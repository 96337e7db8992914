package broker

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/orbitsched/orbit/pkg/types"
)

// VolumeRoot is the host directory under which each named persistent
// volume gets a subdirectory bind-mounted into resident containers.
const VolumeRoot = "/var/lib/orbit/volumes"

// volumeMounts builds the bind mounts for a resident RunSpec's declared
// volume names, the way the teacher's CreateContainerWithMounts accepts
// a caller-built []specs.Mount.
func volumeMounts(volumes []string) []specs.Mount {
	mounts := make([]specs.Mount, 0, len(volumes))
	for _, name := range volumes {
		mounts = append(mounts, specs.Mount{
			Destination: "/mnt/" + name,
			Type:        "bind",
			Source:      VolumeRoot + "/" + name,
			Options:     []string{"rbind", "rw"},
		})
	}
	return mounts
}

// DefaultNamespace is the containerd namespace orbit's reference driver
// places every container under.
const DefaultNamespace = "orbit"

// DefaultSocketPath is the default containerd socket path.
const DefaultSocketPath = "/run/containerd/containerd.sock"

// ContainerRuntime is the narrow container lifecycle surface the
// reference Driver needs; containerdRuntime is its production
// implementation, and tests supply a fake.
type ContainerRuntime interface {
	PullImage(ctx context.Context, image string) error
	CreateContainer(ctx context.Context, id, image string, env []string, resources types.Resources, volumes []string) error
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	DeleteContainer(ctx context.Context, id string) error
	ContainerStatus(ctx context.Context, id string) (types.InstanceStatus, error)
	ListContainers(ctx context.Context) ([]string, error)
}

// containerdRuntime adapts a *containerd.Client to ContainerRuntime.
type containerdRuntime struct {
	client    *containerd.Client
	namespace string
}

// NewContainerdRuntime dials socketPath (DefaultSocketPath if empty) and
// returns a ContainerRuntime backed by it.
func NewContainerdRuntime(socketPath string) (ContainerRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("broker: connect to containerd: %w", err)
	}
	return &containerdRuntime{client: client, namespace: DefaultNamespace}, nil
}

func (r *containerdRuntime) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, r.namespace)
}

func (r *containerdRuntime) PullImage(ctx context.Context, image string) error {
	ctx = r.ctx(ctx)
	if _, err := r.client.Pull(ctx, image, containerd.WithPullUnpack); err != nil {
		return fmt.Errorf("broker: pull image %s: %w", image, err)
	}
	return nil
}

// resourceOpts translates a RunSpec's declared resources into OCI spec
// options, the way the teacher's runtime maps CPU cores to cgroup shares
// and CFS quota (period fixed at 100ms).
func resourceOpts(resources types.Resources) []oci.SpecOpts {
	var opts []oci.SpecOpts
	if resources.CPU > 0 {
		const period = uint64(100000)
		shares := uint64(resources.CPU * 1024)
		quota := int64(resources.CPU * 100000)
		opts = append(opts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, period))
	}
	if resources.MemMB > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(resources.MemMB)*1024*1024))
	}
	return opts
}

func (r *containerdRuntime) CreateContainer(ctx context.Context, id, image string, env []string, resources types.Resources, volumes []string) error {
	ctx = r.ctx(ctx)
	img, err := r.client.GetImage(ctx, image)
	if err != nil {
		return fmt.Errorf("broker: get image %s: %w", image, err)
	}

	opts := append([]oci.SpecOpts{oci.WithImageConfig(img), oci.WithEnv(env)}, resourceOpts(resources)...)
	if mounts := volumeMounts(volumes); len(mounts) > 0 {
		opts = append(opts, oci.WithMounts(mounts))
	}

	_, err = r.client.NewContainer(
		ctx, id,
		containerd.WithImage(img),
		containerd.WithNewSnapshot(id+"-snapshot", img),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return fmt.Errorf("broker: create container %s: %w", id, err)
	}
	return nil
}

func (r *containerdRuntime) StartContainer(ctx context.Context, id string) error {
	ctx = r.ctx(ctx)
	c, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return fmt.Errorf("broker: load container %s: %w", id, err)
	}
	task, err := c.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("broker: create task for %s: %w", id, err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("broker: start task for %s: %w", id, err)
	}
	return nil
}

func (r *containerdRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	ctx = r.ctx(ctx)
	c, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return fmt.Errorf("broker: load container %s: %w", id, err)
	}
	task, err := c.Task(ctx, nil)
	if err != nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("broker: signal task %s: %w", id, err)
	}
	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("broker: wait task %s: %w", id, err)
	}
	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("broker: force-kill task %s: %w", id, err)
		}
	}
	if _, err := task.Delete(ctx); err != nil {
		return fmt.Errorf("broker: delete task %s: %w", id, err)
	}
	return nil
}

func (r *containerdRuntime) DeleteContainer(ctx context.Context, id string) error {
	ctx = r.ctx(ctx)
	c, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return nil
	}
	if err := c.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("broker: delete container %s: %w", id, err)
	}
	return nil
}

func (r *containerdRuntime) ContainerStatus(ctx context.Context, id string) (types.InstanceStatus, error) {
	ctx = r.ctx(ctx)
	c, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return types.StatusGone, nil
	}
	task, err := c.Task(ctx, nil)
	if err != nil {
		return types.StatusStaging, nil
	}
	status, err := task.Status(ctx)
	if err != nil {
		return types.StatusUnknown, fmt.Errorf("broker: task status for %s: %w", id, err)
	}
	switch status.Status {
	case containerd.Running:
		return types.StatusRunning, nil
	case containerd.Stopped:
		if status.ExitStatus == 0 {
			return types.StatusFinished, nil
		}
		return types.StatusFailed, nil
	case containerd.Created, containerd.Paused:
		return types.StatusStarting, nil
	default:
		return types.StatusUnknown, nil
	}
}

func (r *containerdRuntime) ListContainers(ctx context.Context) ([]string, error) {
	ctx = r.ctx(ctx)
	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("broker: list containers: %w", err)
	}
	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID())
	}
	return ids, nil
}
