package tool

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// BuiltinType is the tool type handled by BuiltinProvider.
const BuiltinType = "builtin"

type builtinTemplate struct {
	description string
	source      string
}

// Factorio console commands for the base action set. Placeholders follow the
// same {name} convention as generated scripts so the runner treats both
// kinds identically.
var builtinTemplates = map[string]builtinTemplate{
	"get_player_position": {
		description: "Get the player's current position",
		source:      `/c rcon.print(game.get_player(1).position)`,
	},
	"move_player": {
		description: "Teleport the player to a position",
		source:      `/c game.get_player(1).teleport({x = {x}, y = {y}}) rcon.print("Moved player to (" .. {x} .. ", " .. {y} .. ")")`,
	},
	"find_entities": {
		description: "Find entities of a given name near the player",
		source: `/c local entities = game.surfaces[1].find_entities_filtered{position = game.get_player(1).position, name = "{entity_name}", radius = {radius}}
if entities and #entities > 0 then
  local out = {}
  for _, entity in ipairs(entities) do
    table.insert(out, {name = entity.name, position = entity.position, type = entity.type})
  end
  rcon.print(helpers.table_to_json(out))
else
  rcon.print("Error: no {entity_name} found within {radius} tiles")
end`,
	},
	"scan_area": {
		description: "List all entities within a radius of the player",
		source: `/c local entities = game.surfaces[1].find_entities_filtered{position = game.get_player(1).position, radius = {radius}}
local out = {}
for _, entity in ipairs(entities) do
  table.insert(out, {name = entity.name, position = entity.position, type = entity.type})
end
rcon.print(helpers.table_to_json(out))`,
	},
	"place_entity": {
		description: "Place an entity from the player's inventory",
		source: `/c local player = game.get_player(1)
if player.get_main_inventory().get_item_count("{entity_name}") > 0 and game.surfaces[1].can_place_entity{name = "{entity_name}", position = {{x}, {y}}} then
  game.surfaces[1].create_entity{name = "{entity_name}", position = {x = {x}, y = {y}}, direction = {direction}, force = game.forces.player}
  player.get_main_inventory().remove({name = "{entity_name}", count = 1})
  rcon.print("Placed {entity_name} at (" .. {x} .. ", " .. {y} .. ")")
else
  rcon.print("Error: cannot place {entity_name} at (" .. {x} .. ", " .. {y} .. ")")
end`,
	},
	"remove_entity": {
		description: "Remove an entity and return it to the player's inventory",
		source: `/c local entity = game.surfaces[1].find_entity("{entity_name}", {{x}, {y}})
if entity and game.get_player(1).can_reach_entity(entity) then
  entity.destroy()
  game.get_player(1).insert({name = "{entity_name}", count = 1})
  rcon.print("Removed {entity_name}")
elseif not entity then
  rcon.print("Error: {entity_name} not found at (" .. {x} .. ", " .. {y} .. ")")
else
  rcon.print("Error: cannot reach {entity_name}")
end`,
	},
	"insert_item": {
		description: "Insert items into the player's main inventory",
		source: `/c local inserted = game.get_player(1).insert({name = "{item_name}", count = {count}})
if inserted > 0 then
  rcon.print("Inserted " .. inserted .. " {item_name}")
else
  rcon.print("Error: could not insert {item_name}")
end`,
	},
	"remove_item": {
		description: "Remove items from the player's main inventory",
		source: `/c local removed = game.get_player(1).remove_item({name = "{item_name}", count = {count}})
if removed > 0 then
  rcon.print("Removed " .. removed .. " {item_name}")
else
  rcon.print("Error: no {item_name} in inventory")
end`,
	},
	"get_inventory": {
		description: "Dump the player's main inventory as JSON",
		source:      `/c rcon.print(helpers.table_to_json(game.get_player(1).get_main_inventory().get_contents()))`,
	},
}

// BuiltinProvider serves the fixed action set every agent session starts
// with. Generation is a lookup and validation always passes: the templates
// are trusted source shipped with the binary.
type BuiltinProvider struct{}

func NewBuiltinProvider() *BuiltinProvider {
	return &BuiltinProvider{}
}

func (p *BuiltinProvider) Generate(ctx context.Context, req GenerateRequest) (Artifact, error) {
	tmpl, ok := builtinTemplates[req.Name]
	if !ok {
		return Artifact{}, &GenerationError{
			Requirement: req.Requirement,
			Err:         fmt.Errorf("no builtin template named %q", req.Name),
		}
	}
	return Artifact{Source: tmpl.source, Description: tmpl.description}, nil
}

func (p *BuiltinProvider) Validate(artifact Artifact) ValidationResult {
	return ValidationResult{Valid: true}
}

// CatalogTools returns descriptors for every builtin template, ready to seed
// the catalog. Requirement text is empty: these tools were not generated from
// a natural-language request.
func (p *BuiltinProvider) CatalogTools() []Descriptor {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now().UTC()
	tools := make([]Descriptor, 0, len(names))
	for _, name := range names {
		tools = append(tools, Descriptor{
			Name:      name,
			Type:      BuiltinType,
			Source:    builtinTemplates[name].source,
			Status:    StatusValid,
			CreatedAt: now,
		})
	}
	return tools
}
