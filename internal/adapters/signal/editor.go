package signal

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
)

// Code echoes to the sender too so every replica converges on one text.
func (ctl *SignalWSController) handleCodeChange(sid core.SessionID, data []byte) error {
	var p codeChangePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := ctl.existingRoom(p.RoomID)
	if err != nil {
		return err
	}
	if _, err := ctl.Orch.Rooms.UpdateCode(roomID, p.Code); err != nil {
		return err
	}
	ctl.broadcastRoom(roomID, "", EvCodeUpdated, p.Code)
	return nil
}

func (ctl *SignalWSController) handleLanguageChange(sid core.SessionID, data []byte) error {
	var p languageChangePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := ctl.existingRoom(p.RoomID)
	if err != nil {
		return err
	}
	if _, err := ctl.Orch.Rooms.UpdateLanguage(roomID, p.Language); err != nil {
		return err
	}
	ctl.broadcastRoom(roomID, sid, EvLanguageUpdated, p.Language)
	return nil
}

func (ctl *SignalWSController) handleCreateFile(sid core.SessionID, data []byte) error {
	var p filePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := ctl.existingRoom(p.RoomID)
	if err != nil {
		return err
	}
	name, err := domain.ValidateFileName(p.FileName)
	if err != nil {
		return err
	}
	if err := ctl.Orch.Rooms.CreateFile(roomID, name, p.Language, ctl.nameOf(sid, "")); err != nil {
		return err
	}
	return ctl.broadcastFiles(roomID)
}

func (ctl *SignalWSController) handleDeleteFile(sid core.SessionID, data []byte) error {
	var p filePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := ctl.existingRoom(p.RoomID)
	if err != nil {
		return err
	}
	if err := ctl.Orch.Rooms.DeleteFile(roomID, p.FileName); err != nil {
		return err
	}
	return ctl.broadcastFiles(roomID)
}

func (ctl *SignalWSController) handleRenameFile(sid core.SessionID, data []byte) error {
	var p renameFilePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := ctl.existingRoom(p.RoomID)
	if err != nil {
		return err
	}
	newName, err := domain.ValidateFileName(p.NewName)
	if err != nil {
		return err
	}
	if err := ctl.Orch.Rooms.RenameFile(roomID, p.OldName, newName); err != nil {
		return err
	}
	return ctl.broadcastFiles(roomID)
}

func (ctl *SignalWSController) handleSwitchFile(sid core.SessionID, data []byte) error {
	var p filePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	roomID, err := ctl.existingRoom(p.RoomID)
	if err != nil {
		return err
	}
	f, err := ctl.Orch.Rooms.SetActiveFile(roomID, p.FileName)
	if err != nil {
		return err
	}
	if err := ctl.broadcastFiles(roomID); err != nil {
		return err
	}
	ctl.broadcastRoom(roomID, "", EvFileSwitched, fileSwitchedPayload{
		FileName: f.Name,
		Code:     f.Code,
		Language: f.Language,
	})
	return nil
}

func (ctl *SignalWSController) broadcastFiles(roomID domain.RoomID) error {
	info, err := ctl.Orch.Rooms.Snapshot(roomID)
	if err != nil {
		return err
	}
	ctl.broadcastRoom(roomID, "", EvFilesUpdated, filesUpdatedPayload{
		Files:      info.Files,
		ActiveFile: info.ActiveFile,
	})
	return nil
}
