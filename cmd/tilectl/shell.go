package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/undo"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

var errQuit = errors.New("quit")

const helpText = `Команды:
  begin <name>                 открыть группу изменений
  set <x> <y> <z> <index> [flags]  записать тайл
  get <x> <y> <z>              прочитать тайл
  commit                       зафиксировать группу
  undo | redo                  шаг по истории
  gen <cx> <cz> [seed]         заполнить чанк ландшафтом
  clear [width length]         очистить карту
  stats                        размеры карты и истории
  history                      список снимков
  save                         пересохранить буфер (хук сохранения сцены)
  reload                       пересохранить и восстановить карту из буфера
  write <file> | load <file>   выгрузить / загрузить сохранённый буфер
  dump                         карта в JSON
  quit`

// shell — построчный редактор карты поверх координатора undo.
type shell struct {
	coord       *undo.Coordinator
	out         io.Writer
	interactive bool
}

func newShell(coord *undo.Coordinator, out io.Writer) *shell {
	return &shell{coord: coord, out: out}
}

// Run выполняет команды до конца ввода или quit. Ошибка команды в сценарии
// останавливает выполнение, в интерактивном режиме только печатается.
func (s *shell) Run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	lineNo := 0
	for {
		if s.interactive {
			fmt.Fprint(s.out, "> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := s.exec(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			if !s.interactive {
				return fmt.Errorf("строка %d (%s): %w", lineNo, line, err)
			}
			fmt.Fprintf(s.out, "ошибка: %v\n", err)
		}
	}
}

func (s *shell) exec(line string) error {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "quit", "exit":
		return errQuit
	case "begin":
		return s.coord.BeginEdit(strings.Join(args, " "))
	case "commit":
		id, err := s.coord.CommitEdit()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "committed %s\n", id)
	case "set":
		return s.set(args)
	case "get":
		coord, err := parseVec3(args)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%v = %v\n", coord, s.coord.Store().GetTile(coord))
	case "undo", "redo":
		step := s.coord.Undo
		if cmd == "redo" {
			step = s.coord.Redo
		}
		ok, err := step()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(s.out, "nothing to %s\n", cmd)
		}
	case "gen":
		return s.gen(args)
	case "clear":
		size := s.coord.Store().ChunkSize()
		if len(args) == 2 {
			w, err1 := strconv.Atoi(args[0])
			l, err2 := strconv.Atoi(args[1])
			if err1 != nil || err2 != nil {
				return fmt.Errorf("clear: ожидались два целых числа")
			}
			size = world.ChunkSize{Width: w, Length: l}
		}
		s.coord.Store().ClearTilemap(size)
	case "stats":
		m := s.coord.Store()
		size := m.ChunkSize()
		fmt.Fprintf(s.out, "chunk %dx%d, chunks %d, tiles %d, history %d, state %s, fingerprint %016x\n",
			size.Width, size.Length, m.ChunkCount(), m.TileCount(), len(s.coord.History()), s.coord.State(), s.coord.Fingerprint())
	case "history":
		for _, h := range s.coord.History() {
			mark := " "
			if h.Current {
				mark = "*"
			}
			fmt.Fprintf(s.out, "%s %s %-12q %6d bytes (raw %d)\n", mark, h.GroupID, h.Name, h.Bytes, h.RawSize)
		}
	case "save":
		return s.coord.SceneSaving()
	case "reload":
		if err := s.coord.BeforeReload(); err != nil {
			return err
		}
		return s.coord.AfterReload()
	case "write":
		if len(args) != 1 {
			return fmt.Errorf("write: нужен путь к файлу")
		}
		return os.WriteFile(args[0], s.coord.Buffer(), 0o644)
	case "load":
		if len(args) != 1 {
			return fmt.Errorf("load: нужен путь к файлу")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return s.coord.LoadBuffer(data)
	case "dump":
		data, err := protocol.ToJSON(s.coord.Store())
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, string(data))
	default:
		return fmt.Errorf("неизвестная команда %q (help — список)", cmd)
	}
	return nil
}

func (s *shell) set(args []string) error {
	if len(args) != 4 && len(args) != 5 {
		return fmt.Errorf("set: ожидалось x y z index [flags]")
	}
	coord, err := parseVec3(args[:3])
	if err != nil {
		return err
	}
	index, err := strconv.ParseUint(args[3], 0, 16)
	if err != nil {
		return fmt.Errorf("set: index: %w", err)
	}
	var flags uint64
	if len(args) == 5 {
		if flags, err = strconv.ParseUint(args[4], 0, 16); err != nil {
			return fmt.Errorf("set: flags: %w", err)
		}
	}
	return s.coord.Store().SetTiles([]world.TileAt{
		{Coord: coord, Tile: world.Tile{Index: uint16(index), Flags: uint16(flags)}},
	})
}

func (s *shell) gen(args []string) error {
	if len(args) != 2 && len(args) != 3 {
		return fmt.Errorf("gen: ожидалось cx cz [seed]")
	}
	cx, err1 := strconv.Atoi(args[0])
	cz, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return fmt.Errorf("gen: координаты чанка должны быть целыми")
	}
	seed := int64(1)
	if len(args) == 3 {
		v, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("gen: seed: %w", err)
		}
		seed = v
	}
	m := s.coord.Store()
	batch := world.NewTerrainGenerator(seed).GenerateChunk(vec.Vec2{X: cx, Z: cz}, m.ChunkSize())
	if err := m.SetTiles(batch); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "generated %d tiles\n", len(batch))
	return nil
}

func parseVec3(args []string) (vec.Vec3, error) {
	if len(args) != 3 {
		return vec.Vec3{}, fmt.Errorf("ожидались координаты x y z")
	}
	var v [3]int
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return vec.Vec3{}, fmt.Errorf("координата %q: %w", a, err)
		}
		v[i] = n
	}
	return vec.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}
