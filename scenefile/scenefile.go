// Package scenefile implements the on-disk scene record format: a YAML
// mapping from scene name to a record of typed, posed objects. It is the
// boundary format between the grammar/feasibility core and everything
// downstream (rendering, training-data consumers). Files are append-only;
// records written by this package round-trip exactly.
package scenefile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Object is one posed object in a scene record. Pose is 3 floats
// (x, z, theta) for planar scene families and 7 floats
// (qw, qx, qy, qz, x, y, z) for spatial ones.
type Object struct {
	Class       string    `yaml:"class"`
	Params      []float64 `yaml:"params"`
	ParamsNames []string  `yaml:"params_names"`
	Pose        []float64 `yaml:"pose"`
	Color       []float64 `yaml:"color,omitempty"`
	ImagePath   string    `yaml:"img_path,omitempty"`
}

// Scene is an ordered set of objects.
type Scene struct {
	Objects []Object
}

// objectKey formats the per-object record key for index k.
func objectKey(k int) string {
	return fmt.Sprintf("obj_%04d", k)
}

// MarshalYAML writes the scene as an n_objects count followed by
// obj_%04d entries in object order.
func (s Scene) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	appendPair := func(key string, value interface{}) error {
		kn := &yaml.Node{}
		if err := kn.Encode(key); err != nil {
			return err
		}
		vn := &yaml.Node{}
		if err := vn.Encode(value); err != nil {
			return err
		}
		root.Content = append(root.Content, kn, vn)
		return nil
	}
	if err := appendPair("n_objects", len(s.Objects)); err != nil {
		return nil, err
	}
	for k, obj := range s.Objects {
		if err := appendPair(objectKey(k), obj); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// UnmarshalYAML loads a scene record, requiring n_objects and, per
// object, class and pose. Missing required fields are a load error, not
// silently defaulted.
func (s *Scene) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("scene record is not a mapping")
	}
	nObjects := -1
	byIndex := map[int]Object{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		key := keyNode.Value
		switch {
		case key == "n_objects":
			if err := valNode.Decode(&nObjects); err != nil {
				return fmt.Errorf("decoding n_objects: %w", err)
			}
		case strings.HasPrefix(key, "obj_"):
			var idx int
			if _, err := fmt.Sscanf(key, "obj_%d", &idx); err != nil {
				return fmt.Errorf("%w: %q", ErrBadObjectKey, key)
			}
			var obj Object
			if err := valNode.Decode(&obj); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
			if obj.Class == "" {
				return fmt.Errorf("%w: %s", ErrMissingClass, key)
			}
			if len(obj.Pose) == 0 {
				return fmt.Errorf("%w: %s", ErrMissingPose, key)
			}
			byIndex[idx] = obj
		}
	}
	if nObjects < 0 {
		return ErrMissingObjectCount
	}
	if len(byIndex) != nObjects {
		return fmt.Errorf("%w: n_objects=%d but found %d entries",
			ErrObjectCountMismatch, nObjects, len(byIndex))
	}
	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	s.Objects = make([]Object, 0, len(indices))
	for _, idx := range indices {
		s.Objects = append(s.Objects, byIndex[idx])
	}
	return nil
}

// Load reads every scene record in a file.
func Load(path string) (map[string]Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	scenes := map[string]Scene{}
	if err := yaml.Unmarshal(data, &scenes); err != nil {
		return nil, fmt.Errorf("parsing scene file: %w", err)
	}
	return scenes, nil
}

// LoadOrdered reads a scene file and returns the scenes in file order.
func LoadOrdered(path string) ([]Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing scene file: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("scene file is not a mapping")
	}
	var out []Scene
	for i := 0; i+1 < len(doc.Content); i += 2 {
		var s Scene
		if err := doc.Content[i+1].Decode(&s); err != nil {
			return nil, fmt.Errorf("decoding scene %q: %w", doc.Content[i].Value, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Append writes one named scene record to the end of the file, creating
// the file if needed. New scenes become new top-level keys.
func Append(path, name string, scene Scene) error {
	data, err := yaml.Marshal(map[string]Scene{name: scene})
	if err != nil {
		return fmt.Errorf("marshaling scene: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening scene file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending scene: %w", err)
	}
	return nil
}

// NewSceneName mints a unique top-level key for an appended scene.
func NewSceneName() string {
	return "env_" + uuid.NewString()
}
