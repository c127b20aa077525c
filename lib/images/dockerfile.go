package images

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dfinityianblenke/trainstack/lib/stack"
)

// synthesizeDockerfile renders a build spec into a Dockerfile. The output
// is byte-stable for a given spec so the engine layer cache stays warm
// across daemon restarts.
func synthesizeDockerfile(spec stack.ImageSpec, baseDigest string) string {
	var b strings.Builder

	base := spec.BaseImage
	if baseDigest != "" {
		// Pin the base so rebuilds are reproducible even if the tag moves.
		base = fmt.Sprintf("%s@%s", strings.SplitN(spec.BaseImage, "@", 2)[0], baseDigest)
	}
	fmt.Fprintf(&b, "FROM %s\n", base)

	if spec.WorkingDir != "" {
		fmt.Fprintf(&b, "WORKDIR %s\n", spec.WorkingDir)
	}

	if len(spec.Environment) > 0 {
		keys := make([]string, 0, len(spec.Environment))
		for k := range spec.Environment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "ENV %s=%q\n", k, spec.Environment[k])
		}
	}

	for _, step := range spec.Steps {
		switch {
		case step.Copy != nil:
			fmt.Fprintf(&b, "COPY %s %s\n", step.Copy.Src, step.Copy.Dest)
		case step.Run != "":
			fmt.Fprintf(&b, "RUN %s\n", step.Run)
		}
	}

	return b.String()
}
